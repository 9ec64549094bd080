package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
	"github.com/Klingon-tech/klingnet-miner/internal/telemetry"
)

// FlagFunc fetches the feature flag gating the primary poll.
type FlagFunc func(ctx context.Context) (bool, error)

// FetchFunc performs the primary data fetch.
type FetchFunc func(ctx context.Context) error

// Config holds the supervisor's periods.
type Config struct {
	FlagInterval  time.Duration
	PollInterval  time.Duration
	FocusDebounce time.Duration
}

// DefaultConfig returns the production periods.
func DefaultConfig() Config {
	return Config{
		FlagInterval:  60 * time.Second,
		PollInterval:  30 * time.Second,
		FocusDebounce: time.Second,
	}
}

// Supervisor polls a feature flag and, while the flag is on, the primary
// data source.
//
// The flag is fetched at Start and every FlagInterval. While the primary
// poll is disabled, window focus re-checks the flag at once; while it is
// enabled, focus triggers a debounced primary fetch instead. Fetch errors
// are logged and the next tick retries; there is no backoff.
type Supervisor struct {
	cfg       Config
	flagFetch FlagFunc
	fetch     FetchFunc
	logger    zerolog.Logger

	flagMu sync.Mutex // serializes flag application

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	enabled bool
	started bool
	stopped bool
	wg      sync.WaitGroup

	flagLoop Interval
	pollLoop Interval
	focus    *Debouncer
}

// NewSupervisor creates a supervisor. Zero periods in cfg take defaults.
func NewSupervisor(flagFetch FlagFunc, fetch FetchFunc, cfg Config) *Supervisor {
	def := DefaultConfig()
	if cfg.FlagInterval <= 0 {
		cfg.FlagInterval = def.FlagInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.FocusDebounce <= 0 {
		cfg.FocusDebounce = def.FocusDebounce
	}
	return &Supervisor{
		cfg:       cfg,
		flagFetch: flagFetch,
		fetch:     fetch,
		logger:    klog.Poll,
		focus:     NewDebouncer(cfg.FocusDebounce),
	}
}

// Start begins flag polling. It returns immediately; the first flag fetch
// runs on the polling goroutine.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	s.logger.Info().
		Dur("flag_interval", s.cfg.FlagInterval).
		Dur("poll_interval", s.cfg.PollInterval).
		Msg("Polling supervisor started")

	s.flagLoop.StartNow(runCtx, s.cfg.FlagInterval, s.checkFlag)
}

// Stop tears down every interval and pending debounce and waits for
// in-flight flag checks.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	s.mu.Unlock()

	s.flagLoop.Stop()
	s.wg.Wait()
	s.pollLoop.Stop()
	s.focus.Cancel()

	s.logger.Info().Msg("Polling supervisor stopped")
}

// Enabled reports whether the primary poll is running.
func (s *Supervisor) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Focus signals that the window regained focus.
func (s *Supervisor) Focus() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	ctx, enabled := s.ctx, s.enabled
	if !enabled {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if enabled {
		s.focus.Trigger(func() { s.runFetch(ctx) })
		return
	}
	go func() {
		defer s.wg.Done()
		s.checkFlag(ctx)
	}()
}

// CheckFlag fetches the flag synchronously and applies it.
func (s *Supervisor) CheckFlag() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()
	s.checkFlag(ctx)
}

func (s *Supervisor) checkFlag(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	on, err := s.flagFetch(ctx)
	telemetry.ObserveFetch("flag", err)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Feature flag fetch failed; keeping current state")
		}
		return
	}
	s.setEnabled(ctx, on)
}

func (s *Supervisor) setEnabled(ctx context.Context, on bool) {
	s.flagMu.Lock()
	defer s.flagMu.Unlock()

	s.mu.Lock()
	if s.stopped || s.enabled == on {
		s.mu.Unlock()
		return
	}
	s.enabled = on
	s.mu.Unlock()

	if on {
		s.logger.Info().Dur("interval", s.cfg.PollInterval).Msg("Primary poll enabled")
		s.pollLoop.StartNow(ctx, s.cfg.PollInterval, s.runFetch)
		return
	}
	s.logger.Info().Msg("Primary poll disabled")
	s.pollLoop.Stop()
	s.focus.Cancel()
}

func (s *Supervisor) runFetch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := s.fetch(ctx)
	telemetry.ObserveFetch("primary", err)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("Primary fetch failed; retrying on next tick")
	}
}
