package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if err := validateURL(cfg.Backend.RPC, "backend.rpc", "http", "https"); err != nil {
		return err
	}
	if err := validateURL(cfg.Backend.Events, "backend.events", "ws", "wss"); err != nil {
		return err
	}
	if cfg.Backend.RPS < 0 {
		return fmt.Errorf("backend.rps must be >= 0")
	}

	for _, d := range []struct {
		name string
		v    int64
	}{
		{"poll.flag_interval", int64(cfg.Poll.FlagInterval)},
		{"poll.interval", int64(cfg.Poll.Interval)},
		{"poll.focus_debounce", int64(cfg.Poll.FocusDebounce)},
		{"rewards.clear_delay", int64(cfg.Rewards.ClearDelay)},
	} {
		if d.v <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	if cfg.Poll.Flag == "" {
		return fmt.Errorf("poll.flag must not be empty")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}

func validateURL(raw, field string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL with a host", field, schemes[0])
}
