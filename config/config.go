// Package config handles application configuration.
//
// Settings come from defaults, then the klingnet-miner.conf file in the
// data directory, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds the miner front end's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Native backend endpoints
	Backend BackendConfig

	// Polling supervisor
	Poll PollConfig

	// Reward display
	Rewards RewardsConfig

	// UI state storage
	Storage StorageConfig

	// Prometheus endpoint
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// BackendConfig locates the native mining backend.
type BackendConfig struct {
	RPC    string `conf:"backend.rpc"`    // JSON-RPC endpoint
	Events string `conf:"backend.events"` // websocket event stream
	RPS    int    `conf:"backend.rps"`    // max RPC calls per second, 0 = unlimited
}

// PollConfig holds the polling supervisor timings.
type PollConfig struct {
	FlagInterval  time.Duration `conf:"poll.flag_interval"`
	Interval      time.Duration `conf:"poll.interval"`
	FocusDebounce time.Duration `conf:"poll.focus_debounce"`
	Flag          string        `conf:"poll.flag"` // feature flag gating history polling
}

// RewardsConfig holds reward display settings.
type RewardsConfig struct {
	ClearDelay time.Duration `conf:"rewards.clear_delay"`
}

// StorageConfig holds UI state storage settings.
type StorageConfig struct {
	Memory bool `conf:"storage.memory"` // keep UI state in memory only
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `conf:"metrics.addr"` // listen address, empty = disabled
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingnet
//	macOS:   ~/Library/Application Support/Klingnet
//	Windows: %APPDATA%\Klingnet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingnet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Klingnet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Klingnet")
		}
		return filepath.Join(home, "AppData", "Roaming", "Klingnet")
	default:
		return filepath.Join(home, ".klingnet")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// UIDir returns the directory of the UI state database.
func (c *Config) UIDir() string {
	return filepath.Join(c.ChainDataDir(), "ui")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingnet-miner.conf")
}
