package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/Klingon-tech/klingnet-miner/config"
	"github.com/Klingon-tech/klingnet-miner/internal/hub"
	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
)

// focusEvent is emitted by the frontend when the window gains focus.
const focusEvent = "window:focus"

// qtSettings is the persistent configuration written to qt-settings.json.
type qtSettings struct {
	DataDir       string `json:"data_dir"`
	Network       string `json:"network"`
	BackendRPC    string `json:"backend_rpc,omitempty"`
	BackendEvents string `json:"backend_events,omitempty"`
	Notifications *bool  `json:"notifications,omitempty"`
}

// App manages application lifecycle and settings.
type App struct {
	ctx context.Context

	mu            sync.RWMutex
	dataDir       string
	networkName   string // "mainnet" or "testnet"
	backendRPC    string // empty = config file value
	backendEvents string
	notifications bool

	hub      *hub.Hub
	offFocus func()
}

// NewApp creates the application with default settings.
func NewApp() *App {
	app := &App{
		dataDir:       config.DefaultDataDir(),
		networkName:   string(config.Mainnet),
		notifications: true,
	}
	app.loadSettings()
	return app
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if err := a.startHub(); err != nil {
		klog.Error().Err(err).Msg("Failed to start miner state service")
		runtime.EventsEmit(ctx, "app:error", err.Error())
	}
	a.offFocus = runtime.EventsOn(ctx, focusEvent, func(...interface{}) {
		a.mu.RLock()
		h := a.hub
		a.mu.RUnlock()
		if h != nil {
			h.Focus()
		}
	})
}

func (a *App) shutdown(_ context.Context) {
	if a.offFocus != nil {
		a.offFocus()
	}
	a.stopHub()
}

// config builds the runtime configuration from the conf file and the
// settings the user changed in the app.
func (a *App) config() (*config.Config, error) {
	a.mu.RLock()
	dataDir, network := a.dataDir, config.NetworkType(a.networkName)
	rpc, events := a.backendRPC, a.backendEvents
	a.mu.RUnlock()

	cfg, err := config.LoadFromFile(dataDir, network)
	if err != nil {
		return nil, err
	}
	if rpc != "" {
		cfg.Backend.RPC = rpc
	}
	if events != "" {
		cfg.Backend.Events = events
	}
	return cfg, config.Validate(cfg)
}

func (a *App) startHub() error {
	cfg, err := a.config()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	emitter := &notifyEmitter{
		next:    &wailsEmitter{ctx: a.ctx},
		enabled: a.NotificationsEnabled,
		notify:  sendOSNotification,
	}
	h, err := hub.New(cfg, emitter)
	if err != nil {
		return err
	}
	if err := h.Start(); err != nil {
		h.Stop()
		return err
	}

	a.mu.Lock()
	a.hub = h
	a.mu.Unlock()
	return nil
}

func (a *App) stopHub() {
	a.mu.Lock()
	h := a.hub
	a.hub = nil
	a.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Reconnect restarts the state service with the current settings.
func (a *App) Reconnect() error {
	a.stopHub()
	return a.startHub()
}

// GetSnapshot returns the full derived state for the first render.
func (a *App) GetSnapshot() (hub.Snapshot, error) {
	a.mu.RLock()
	h := a.hub
	a.mu.RUnlock()
	if h == nil {
		return hub.Snapshot{}, fmt.Errorf("miner state service is not running")
	}
	return h.Snapshot(), nil
}

// FormatHashRate renders a hash rate for display.
func (a *App) FormatHashRate(rate float64) string {
	return formatHashRate(rate)
}

// settingsPath returns the path to qt-settings.json.
func (a *App) settingsPath() string {
	return filepath.Join(a.dataDir, "qt-settings.json")
}

// ── Settings persistence ─────────────────────────────────────────────

func (a *App) loadSettings() {
	data, err := os.ReadFile(a.settingsPath())
	if err != nil {
		return // first launch or missing file
	}
	var s qtSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return
	}
	if s.DataDir != "" {
		a.dataDir = s.DataDir
	}
	if s.Network != "" {
		a.networkName = s.Network
	}
	a.backendRPC = s.BackendRPC
	a.backendEvents = s.BackendEvents
	if s.Notifications != nil {
		a.notifications = *s.Notifications
	}
}

func (a *App) saveSettings() {
	a.mu.RLock()
	notifications := a.notifications
	s := qtSettings{
		DataDir:       a.dataDir,
		Network:       a.networkName,
		BackendRPC:    a.backendRPC,
		BackendEvents: a.backendEvents,
		Notifications: &notifications,
	}
	path := a.settingsPath()
	a.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(path), 0700)
	_ = os.WriteFile(path, data, 0600)
}

// ── Getters / Setters (each setter persists) ─────────────────────────

// GetDataDir returns the current data directory.
func (a *App) GetDataDir() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataDir
}

// SetDataDir updates the data directory. Takes effect on Reconnect.
func (a *App) SetDataDir(dir string) {
	a.mu.Lock()
	a.dataDir = dir
	a.mu.Unlock()
	a.saveSettings()
}

// GetNetwork returns the current network name ("mainnet" or "testnet").
func (a *App) GetNetwork() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.networkName
}

// SetNetwork updates the network name. Takes effect on Reconnect.
func (a *App) SetNetwork(network string) {
	a.mu.Lock()
	a.networkName = network
	a.mu.Unlock()
	a.saveSettings()
}

// GetBackendRPC returns the backend RPC override, empty when unset.
func (a *App) GetBackendRPC() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backendRPC
}

// SetBackendEndpoints overrides the backend endpoints. Empty values fall
// back to the config file.
func (a *App) SetBackendEndpoints(rpc, events string) {
	a.mu.Lock()
	a.backendRPC = rpc
	a.backendEvents = events
	a.mu.Unlock()
	a.saveSettings()
}

// NotificationsEnabled reports whether rewards raise OS notifications.
func (a *App) NotificationsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.notifications
}

// SetNotifications toggles OS notifications for rewards.
func (a *App) SetNotifications(on bool) {
	a.mu.Lock()
	a.notifications = on
	a.mu.Unlock()
	a.saveSettings()
}
