// Package hub wires backend events, reconcilers and the polling supervisor
// into one service that pushes display-ready state to a frontend.
package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-miner/config"
	"github.com/Klingon-tech/klingnet-miner/internal/backend"
	"github.com/Klingon-tech/klingnet-miner/internal/events"
	"github.com/Klingon-tech/klingnet-miner/internal/history"
	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
	"github.com/Klingon-tech/klingnet-miner/internal/mining"
	"github.com/Klingon-tech/klingnet-miner/internal/netstatus"
	"github.com/Klingon-tech/klingnet-miner/internal/poll"
	"github.com/Klingon-tech/klingnet-miner/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-miner/internal/setup"
	"github.com/Klingon-tech/klingnet-miner/internal/storage"
	"github.com/Klingon-tech/klingnet-miner/internal/telemetry"
)

// Frontend events.
const (
	EventSetupPhase    = "setup:phase"
	EventSetupComplete = "setup:complete"
	EventReward        = "mining:reward"
	EventRewardCleared = "mining:reward_cleared"
	EventHashRate      = "mining:hashrate"
	EventNewBlock      = "mining:block"
	EventHistory       = "history:updated"
	EventNetwork       = "network:status"
)

// HistoryPageSize is the number of transactions fetched per refresh.
const HistoryPageSize = 20

// Emitter pushes derived state to the frontend.
type Emitter interface {
	Emit(name string, data any)
}

// Hub is the miner front end's state service.
type Hub struct {
	cfg     *config.Config
	emitter Emitter
	logger  zerolog.Logger

	db storage.DB

	bus    *events.Bus
	stream *events.Stream

	setup   *setup.Tracker
	mining  *mining.Reconciler
	history *history.Store
	network *netstatus.Tracker

	backend    *backend.Client
	supervisor *poll.Supervisor

	completed atomic.Bool
	disposers []func()

	// Lifecycle
	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a hub. It opens storage but starts nothing; call Start.
func New(cfg *config.Config, emitter Emitter) (*Hub, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	h := &Hub{
		cfg:     cfg,
		emitter: emitter,
		logger:  klog.Hub,
		bus:     events.NewBus(),
		setup:   setup.NewTracker(),
		mining:  mining.NewReconciler(cfg.Rewards.ClearDelay),
		network: netstatus.NewTracker(),
	}

	if cfg.Storage.Memory {
		h.db = storage.NewMemory()
	} else {
		db, err := storage.NewBadger(cfg.UIDir())
		if err != nil {
			return nil, fmt.Errorf("open ui storage: %w", err)
		}
		h.db = db
	}
	h.history = history.NewStore(h.db)

	rpc := rpcclient.New(cfg.Backend.RPC, rpcclient.WithRateLimit(cfg.Backend.RPS))
	h.backend = backend.New(rpc)
	h.stream = events.NewStream(cfg.Backend.Events, h.bus, 0)
	h.supervisor = poll.NewSupervisor(h.fetchFlag, h.fetchPrimary, poll.Config{
		FlagInterval:  cfg.Poll.FlagInterval,
		PollInterval:  cfg.Poll.Interval,
		FocusDebounce: cfg.Poll.FocusDebounce,
	})
	h.mining.OnRewardCleared(func() { h.emit(EventRewardCleared, nil) })

	return h, nil
}

// Start subscribes the event handlers, restores persisted history and
// starts the event stream and supervisor.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.mu.Unlock()

	if err := h.history.Load(); err != nil {
		h.logger.Warn().Err(err).Msg("Starting with empty history")
	}

	h.disposers = append(h.disposers,
		events.Subscribe(h.bus, events.ProgressTrackerUpdate, h.onSetup),
		events.Subscribe(h.bus, events.MinerMetrics, h.onMetrics),
		events.Subscribe(h.bus, events.WalletTransactions, h.onTransactions),
		events.Subscribe(h.bus, events.ConnectionStatus, h.onConnection),
	)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.stream.Run(h.ctx)
	}()
	h.supervisor.Start(h.ctx)

	h.logger.Info().
		Str("network", string(h.cfg.Network)).
		Str("rpc", h.cfg.Backend.RPC).
		Str("events", h.cfg.Backend.Events).
		Msg("Hub started")
	return nil
}

// Stop disposes every subscription, stops timers and closes storage.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	started := h.started
	h.mu.Unlock()

	if started {
		for _, dispose := range h.disposers {
			dispose()
		}
		h.supervisor.Stop()
		h.cancel()
		h.wg.Wait()
	}
	h.mining.Stop()

	if err := h.db.Close(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to close storage")
	}
	h.logger.Info().Msg("Hub stopped")
}

// Bus returns the event bus. Tests and embedders may publish directly.
func (h *Hub) Bus() *events.Bus {
	return h.bus
}

// Focus reports that the application window gained focus.
func (h *Hub) Focus() {
	h.supervisor.Focus()
}

func (h *Hub) emit(name string, data any) {
	if h.emitter != nil {
		h.emitter.Emit(name, data)
	}
}

// ── Event handlers ──────────────────────────────────────────────────

// PhaseView is the setup:phase payload.
type PhaseView struct {
	setup.Progress
	Phase   setup.Phase `json:"phase"`
	Overall float64     `json:"overall"`
}

func (h *Hub) onSetup(u setup.Update) {
	state, changed := h.setup.Apply(u)
	if rec, ok := state.Get(u.Phase()); ok {
		telemetry.SetPhaseProgress(string(u.Phase()), rec.Progress)
	}
	if changed {
		h.emit(EventSetupPhase, PhaseView{
			Progress: state.Displayed(),
			Phase:    state.Current(),
			Overall:  state.Overall(),
		})
	}
	if state.Complete() && h.completed.CompareAndSwap(false, true) {
		h.logger.Info().Msg("Backend setup complete")
		h.emit(EventSetupComplete, nil)
	}
}

func (h *Hub) onMetrics(m mining.Metrics) {
	for _, e := range h.mining.Apply(m) {
		switch e.Kind {
		case mining.EffectReward:
			h.emit(EventReward, e)
		case mining.EffectHashRate:
			h.emit(EventHashRate, e)
		case mining.EffectNewBlock:
			h.emit(EventNewBlock, e)
			h.refreshAsync()
		}
	}
}

func (h *Hub) onTransactions(txs []history.Transaction) {
	h.applyHistory(txs, true)
}

func (h *Hub) onConnection(p netstatus.Payload) {
	if status, changed := h.network.Apply(p); changed {
		h.emit(EventNetwork, status)
	}
}

// ── History ─────────────────────────────────────────────────────────

func (h *Hub) applyHistory(txs []history.Transaction, upsert bool) {
	list, changed := h.history.Apply(txs, upsert)
	if !changed {
		return
	}
	if len(list) > HistoryPageSize {
		list = list[:HistoryPageSize]
	}
	h.emit(EventHistory, list)
}

// refreshAsync refreshes the first history page off the dispatch path.
func (h *Hub) refreshAsync() {
	h.mu.Lock()
	if h.stopped || h.ctx == nil {
		h.mu.Unlock()
		return
	}
	ctx := h.ctx
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		err := h.refreshPage(ctx)
		telemetry.ObserveFetch("block_refresh", err)
		if err != nil && ctx.Err() == nil {
			h.logger.Warn().Err(err).Msg("History refresh after new block failed")
		}
	}()
}

func (h *Hub) refreshPage(ctx context.Context) error {
	txs, err := h.backend.Transactions(ctx, 0, HistoryPageSize)
	if err != nil {
		return err
	}
	h.applyHistory(txs, true)
	return nil
}

func (h *Hub) fetchFlag(ctx context.Context) (bool, error) {
	return h.backend.FeatureFlag(ctx, h.cfg.Poll.Flag)
}

// fetchPrimary refreshes the first history page, then re-reads still
// pending transactions without admitting new records.
func (h *Hub) fetchPrimary(ctx context.Context) error {
	if err := h.refreshPage(ctx); err != nil {
		return err
	}
	pending := h.history.Pending()
	if len(pending) == 0 {
		return nil
	}
	details, err := h.backend.TransactionDetails(ctx, pending)
	if err != nil {
		return err
	}
	h.applyHistory(details, false)
	return nil
}

// ── Snapshot ────────────────────────────────────────────────────────

// Snapshot is the full derived state for a frontend's first render.
type Snapshot struct {
	Setup         PhaseView             `json:"setup"`
	SetupComplete bool                  `json:"setup_complete"`
	Mining        mining.State          `json:"mining"`
	Rewards       []mining.Effect       `json:"rewards"`
	History       []history.Transaction `json:"history"`
	Network       netstatus.Status      `json:"network"`
	Polling       bool                  `json:"polling"`
}

// Snapshot returns the current derived state.
func (h *Hub) Snapshot() Snapshot {
	state := h.setup.State()
	return Snapshot{
		Setup: PhaseView{
			Progress: state.Displayed(),
			Phase:    state.Current(),
			Overall:  state.Overall(),
		},
		SetupComplete: h.completed.Load(),
		Mining:        h.mining.State(),
		Rewards:       h.mining.Rewards(),
		History:       h.history.Page(0, HistoryPageSize),
		Network:       h.network.Status(),
		Polling:       h.supervisor.Enabled(),
	}
}
