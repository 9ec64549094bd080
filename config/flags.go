package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is the release version reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// Backend
	BackendRPC    string
	BackendEvents string
	BackendRPS    int

	// Polling
	FlagInterval  time.Duration
	PollInterval  time.Duration
	FocusDebounce time.Duration
	PollFlag      string

	// Rewards
	RewardClear time.Duration

	// Storage
	Memory bool

	// Metrics
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags (for true/false and zero overrides).
	SetBackendRPS bool
	SetMemory     bool
	SetLogJSON    bool
}

// ParseArgs parses command-line arguments (without the program name).
func ParseArgs(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("klingnet-miner", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// Backend
	fs.StringVar(&f.BackendRPC, "backend-rpc", "", "Backend JSON-RPC URL")
	fs.StringVar(&f.BackendEvents, "backend-events", "", "Backend event websocket URL")
	fs.IntVar(&f.BackendRPS, "backend-rps", 0, "Max backend RPC calls per second (0 = unlimited)")

	// Polling
	fs.DurationVar(&f.FlagInterval, "flag-interval", 0, "Feature flag check interval")
	fs.DurationVar(&f.PollInterval, "poll-interval", 0, "Transaction history poll interval")
	fs.DurationVar(&f.FocusDebounce, "focus-debounce", 0, "Window focus debounce window")
	fs.StringVar(&f.PollFlag, "poll-flag", "", "Feature flag gating history polling")

	// Rewards
	fs.DurationVar(&f.RewardClear, "reward-clear", 0, "How long a reward stays visible")

	// Storage
	fs.BoolVar(&f.Memory, "memory", false, "Keep UI state in memory only")

	// Metrics
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Prometheus metrics listen address")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *testnet {
		f.Network = string(Testnet)
	}
	f.SetBackendRPS = isFlagSet(fs, "backend-rps")
	f.SetMemory = isFlagSet(fs, "memory")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}
	return f, nil
}

// ParseFlags parses os.Args, exiting on error.
func ParseFlags() *Flags {
	f, err := ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Backend
	if f.BackendRPC != "" {
		cfg.Backend.RPC = f.BackendRPC
	}
	if f.BackendEvents != "" {
		cfg.Backend.Events = f.BackendEvents
	}
	if f.SetBackendRPS {
		cfg.Backend.RPS = f.BackendRPS
	}

	// Polling
	if f.FlagInterval != 0 {
		cfg.Poll.FlagInterval = f.FlagInterval
	}
	if f.PollInterval != 0 {
		cfg.Poll.Interval = f.PollInterval
	}
	if f.FocusDebounce != 0 {
		cfg.Poll.FocusDebounce = f.FocusDebounce
	}
	if f.PollFlag != "" {
		cfg.Poll.Flag = f.PollFlag
	}

	// Rewards
	if f.RewardClear != 0 {
		cfg.Rewards.ClearDelay = f.RewardClear
	}

	// Storage
	if f.SetMemory {
		cfg.Storage.Memory = f.Memory
	}

	// Metrics
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `Klingnet Miner - desktop mining front end state service

Usage:
  klingnet-minerd [options]
  klingnet-minerd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.klingnet)
  --config, -c    Config file path (default: <datadir>/klingnet-miner.conf)

Backend Options:
  --backend-rpc     Backend JSON-RPC URL (mainnet: http://127.0.0.1:8545)
  --backend-events  Backend event websocket URL (mainnet: ws://127.0.0.1:8546/events)
  --backend-rps     Max RPC calls per second, 0 = unlimited (default: 20)

Polling Options:
  --flag-interval   Feature flag check interval (default: 60s)
  --poll-interval   Transaction history poll interval (default: 30s)
  --focus-debounce  Window focus debounce window (default: 1s)
  --poll-flag       Feature flag gating history polling

Display Options:
  --reward-clear  How long a detected reward stays visible (default: 5s)
  --memory        Keep UI state in memory only

Metrics Options:
  --metrics-addr  Serve Prometheus metrics on this address (default: disabled)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Examples:
  # Watch a local mainnet backend
  klingnet-minerd

  # Watch a testnet backend on another host
  klingnet-minerd --testnet --backend-rpc=http://10.0.0.5:8645 --backend-events=ws://10.0.0.5:8646/events
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("klingnet-minerd version " + Version)
		os.Exit(0)
	}

	cfg, err := Resolve(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// Resolve builds the configuration for already parsed flags.
func Resolve(flags *Flags) (*Config, error) {
	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// Flags have the highest precedence.
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads config from defaults + conf file only (no CLI flags).
// Used by the desktop app which has no CLI flags.
func LoadFromFile(dataDir string, network NetworkType) (*Config, error) {
	cfg := Default(network)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}
	fileValues, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config: %w", err)
	}
	// The app picks the network; a network key in the file must not move
	// storage to another network's directory.
	cfg.Network = network
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.ChainDataDir(),
		cfg.LogsDir(),
	}
	if !cfg.Storage.Memory {
		dirs = append(dirs, cfg.UIDir())
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}
	return nil
}
