package mining

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
	"github.com/Klingon-tech/klingnet-miner/internal/poll"
	"github.com/Klingon-tech/klingnet-miner/internal/telemetry"
)

// DefaultRewardDisplay is how long a reward stays visible.
const DefaultRewardDisplay = 5 * time.Second

// Reconciler holds the latest metric state and the currently visible
// rewards. Visible rewards clear DefaultRewardDisplay after the most
// recent reward.
type Reconciler struct {
	mu      sync.Mutex
	state   State
	visible []Effect
	display time.Duration
	clear   poll.Timer
	onClear func()
	logger  zerolog.Logger
}

// NewReconciler creates a reconciler. A non-positive display uses
// DefaultRewardDisplay.
func NewReconciler(display time.Duration) *Reconciler {
	if display <= 0 {
		display = DefaultRewardDisplay
	}
	return &Reconciler{
		display: display,
		logger:  klog.Mining,
	}
}

// OnRewardCleared registers a callback run when visible rewards clear.
func (r *Reconciler) OnRewardCleared(fn func()) {
	r.mu.Lock()
	r.onClear = fn
	r.mu.Unlock()
}

// Apply reconciles one snapshot and returns its effects.
func (r *Reconciler) Apply(m Metrics) []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, effects := Reconcile(r.state, m)
	r.state = next

	for src, st := range next.Sources {
		telemetry.SetHashRate(string(src), st.HashRate)
	}

	var rewarded bool
	for _, e := range effects {
		if e.Kind != EffectReward {
			continue
		}
		rewarded = true
		r.visible = append(r.visible, e)
		telemetry.ObserveReward(string(e.Source))
		r.logger.Info().
			Str("source", string(e.Source)).
			Float64("amount", e.Amount).
			Msg("Pool reward detected")
	}
	if rewarded {
		r.clear.Reset(r.display, r.clearVisible)
	}
	return effects
}

func (r *Reconciler) clearVisible() {
	r.mu.Lock()
	r.visible = nil
	fn := r.onClear
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// State returns the current metric state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.state
	out.Sources = make(map[Source]SourceState, len(r.state.Sources))
	for k, v := range r.state.Sources {
		out.Sources[k] = v
	}
	return out
}

// Rewards returns the rewards that are still visible.
func (r *Reconciler) Rewards() []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Effect(nil), r.visible...)
}

// Stop cancels the pending clear.
func (r *Reconciler) Stop() {
	r.clear.Stop()
}
