package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration values from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	var err error
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// Backend
	case "backend.rpc":
		cfg.Backend.RPC = value
	case "backend.events":
		cfg.Backend.Events = value
	case "backend.rps":
		cfg.Backend.RPS, err = strconv.Atoi(value)

	// Polling
	case "poll.flag_interval":
		cfg.Poll.FlagInterval, err = time.ParseDuration(value)
	case "poll.interval":
		cfg.Poll.Interval, err = time.ParseDuration(value)
	case "poll.focus_debounce":
		cfg.Poll.FocusDebounce, err = time.ParseDuration(value)
	case "poll.flag":
		cfg.Poll.Flag = value

	// Rewards
	case "rewards.clear_delay":
		cfg.Rewards.ClearDelay, err = time.ParseDuration(value)

	// Storage
	case "storage.memory":
		cfg.Storage.Memory = parseBool(value)

	// Metrics
	case "metrics.addr":
		cfg.Metrics.Addr = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return err
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	def := Default(network)
	content := `# Klingnet Miner Configuration

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.klingnet)
# datadir = ~/.klingnet

# ============================================================================
# Mining backend
# ============================================================================

backend.rpc = ` + def.Backend.RPC + `
backend.events = ` + def.Backend.Events + `
# Max RPC calls per second (0 = unlimited)
backend.rps = ` + strconv.Itoa(def.Backend.RPS) + `

# ============================================================================
# Polling
# ============================================================================

# How often the history feature flag is re-checked
poll.flag_interval = 60s
# How often transaction history is refreshed while the flag is on
poll.interval = 30s
# Window focus events within this window trigger a single refresh
poll.focus_debounce = 1s
# poll.flag = ` + DefaultFlag + `

# ============================================================================
# Rewards
# ============================================================================

# How long a detected pool reward stays visible
rewards.clear_delay = 5s

# ============================================================================
# Storage
# ============================================================================

# Keep UI state in memory only (history is refetched on every start)
storage.memory = false

# ============================================================================
# Metrics
# ============================================================================

# Serve Prometheus metrics on this address (headless daemon only)
# metrics.addr = 127.0.0.1:9108

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
