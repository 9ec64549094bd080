package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	for _, network := range []NetworkType{Mainnet, Testnet} {
		if err := Validate(Default(network)); err != nil {
			t.Errorf("Default(%s) invalid: %v", network, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad network", func(c *Config) { c.Network = "devnet" }, "network"},
		{"rpc scheme", func(c *Config) { c.Backend.RPC = "ws://127.0.0.1:8545" }, "backend.rpc"},
		{"events scheme", func(c *Config) { c.Backend.Events = "http://127.0.0.1:8546" }, "backend.events"},
		{"rpc no host", func(c *Config) { c.Backend.RPC = "http://" }, "backend.rpc"},
		{"negative rps", func(c *Config) { c.Backend.RPS = -1 }, "backend.rps"},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }, "poll.interval"},
		{"zero clear", func(c *Config) { c.Rewards.ClearDelay = 0 }, "rewards.clear_delay"},
		{"empty flag", func(c *Config) { c.Poll.Flag = "" }, "poll.flag"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
	if err := Validate(nil); err == nil {
		t.Fatal("Validate(nil) succeeded")
	}
}

func TestApplyFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klingnet-miner.conf")
	content := `# comment
backend.rpc = "http://10.0.0.5:8545"
backend.rps = 5
poll.interval = 10s
poll.focus_debounce = 250ms
rewards.clear_delay = 3s
storage.memory = yes
log.json = on
metrics.addr = 127.0.0.1:9108
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Backend.RPC != "http://10.0.0.5:8545" {
		t.Errorf("backend.rpc = %q", cfg.Backend.RPC)
	}
	if cfg.Backend.RPS != 5 {
		t.Errorf("backend.rps = %d", cfg.Backend.RPS)
	}
	if cfg.Poll.Interval != 10*time.Second || cfg.Poll.FocusDebounce != 250*time.Millisecond {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.Rewards.ClearDelay != 3*time.Second {
		t.Errorf("rewards.clear_delay = %v", cfg.Rewards.ClearDelay)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9108" {
		t.Errorf("metrics.addr = %q", cfg.Metrics.Addr)
	}
	if !cfg.Storage.Memory || !cfg.Log.JSON {
		t.Errorf("bools not applied: %+v %+v", cfg.Storage, cfg.Log)
	}
}

func TestApplyFileConfig_BadValues(t *testing.T) {
	for _, kv := range []map[string]string{
		{"backend.rps": "fast"},
		{"poll.interval": "30"},
	} {
		if err := ApplyFileConfig(DefaultMainnet(), kv); err == nil {
			t.Errorf("ApplyFileConfig(%v) succeeded", kv)
		}
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil || len(values) != 0 {
		t.Fatalf("LoadFile = %v, %v", values, err)
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	os.WriteFile(path, []byte("network mainnet\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseArgs(t *testing.T) {
	f, err := ParseArgs([]string{"--testnet", "--backend-rps=0", "--poll-interval=5s", "--memory"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if f.Network != "testnet" || !f.SetBackendRPS || f.PollInterval != 5*time.Second || !f.SetMemory {
		t.Fatalf("flags = %+v", f)
	}

	cfg := DefaultTestnet()
	ApplyFlags(cfg, f)
	if cfg.Backend.RPS != 0 {
		t.Errorf("explicit zero rps not applied: %d", cfg.Backend.RPS)
	}
	if !cfg.Storage.Memory || cfg.Poll.Interval != 5*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParseArgs_PositionalStopsParsing(t *testing.T) {
	if _, err := ParseArgs([]string{"--memory", "extra", "--log-json"}); err == nil {
		t.Fatal("expected error for unparsed flag")
	}
}

func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "klingnet-miner.conf")
	os.WriteFile(conf, []byte("poll.interval = 10s\nlog.level = debug\n"), 0644)

	f, err := ParseArgs([]string{"--datadir=" + dir, "--log-level=warn"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Resolve(f)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.Poll.Interval != 10*time.Second {
		t.Errorf("file value not applied: %v", cfg.Poll.Interval)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("flag did not override file: %q", cfg.Log.Level)
	}
	if _, err := os.Stat(cfg.UIDir()); err != nil {
		t.Errorf("ui dir not created: %v", err)
	}
}

func TestLoadFromFile_WritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromFile(dir, Testnet)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Network != Testnet || cfg.Backend.RPC != "http://127.0.0.1:8645" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, "klingnet-miner.conf")); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	// The written default file must load back to a valid config.
	again, err := LoadFromFile(dir, Testnet)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Poll.Interval != 30*time.Second {
		t.Fatalf("poll.interval = %v", again.Poll.Interval)
	}
}

func TestDirs(t *testing.T) {
	cfg := &Config{Network: Testnet, DataDir: "/data"}
	if got := cfg.UIDir(); got != filepath.Join("/data", "testnet", "ui") {
		t.Errorf("UIDir = %q", got)
	}
	if got := cfg.ConfigFile(); got != filepath.Join("/data", "klingnet-miner.conf") {
		t.Errorf("ConfigFile = %q", got)
	}
}
