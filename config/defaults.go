package config

import "time"

// DefaultFlag is the feature flag gating transaction history polling.
const DefaultFlag = "wallet_transactions_polling"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Backend: BackendConfig{
			RPC:    "http://127.0.0.1:8545",
			Events: "ws://127.0.0.1:8546/events",
			RPS:    20,
		},
		Poll: PollConfig{
			FlagInterval:  60 * time.Second,
			Interval:      30 * time.Second,
			FocusDebounce: time.Second,
			Flag:          DefaultFlag,
		},
		Rewards: RewardsConfig{
			ClearDelay: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Backend.RPC = "http://127.0.0.1:8645"
	cfg.Backend.Events = "ws://127.0.0.1:8646/events"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
