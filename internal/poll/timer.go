// Package poll owns every timer of the reconciliation core: one-shot
// timers, debouncers, intervals, and the polling supervisor built on them.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// Timer is a cancellable one-shot timer. A firing that was superseded by
// Reset or Stop never runs its callback.
type Timer struct {
	mu  sync.Mutex
	t   *time.Timer
	gen uint64
}

// Reset schedules fn to run after d, replacing any pending callback.
func (t *Timer) Reset(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.t = time.AfterFunc(d, func() {
		t.mu.Lock()
		if gen != t.gen {
			t.mu.Unlock()
			return
		}
		t.t = nil
		t.mu.Unlock()
		fn()
	})
}

// Stop cancels the pending callback, if any.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.gen++
}

// Pending reports whether a callback is scheduled.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.t != nil
}

// Debouncer coalesces bursts of triggers into one call made after a quiet
// period.
type Debouncer struct {
	mu        sync.Mutex
	debounced func(f func())
	gen       uint64
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(after time.Duration) *Debouncer {
	return &Debouncer{debounced: debounce.New(after)}
}

// Trigger (re)starts the quiet period; fn runs once it elapses, unless a
// later Trigger or Cancel supersedes it.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	d.debounced(func() {
		d.mu.Lock()
		live := gen == d.gen
		d.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Cancel drops the pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.gen++
	d.mu.Unlock()
	// Replace the pending function; debounce has no cancel of its own.
	d.debounced(func() {})
}

// Interval runs a function on a fixed period until stopped.
type Interval struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start runs fn every d until ctx is cancelled or Stop is called. A running
// interval is stopped first.
func (iv *Interval) Start(ctx context.Context, d time.Duration, fn func(context.Context)) {
	iv.start(ctx, d, false, fn)
}

// StartNow is Start with one immediate call before the first tick.
func (iv *Interval) StartNow(ctx context.Context, d time.Duration, fn func(context.Context)) {
	iv.start(ctx, d, true, fn)
}

func (iv *Interval) start(ctx context.Context, d time.Duration, now bool, fn func(context.Context)) {
	iv.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	iv.mu.Lock()
	iv.cancel = cancel
	iv.done = done
	iv.mu.Unlock()

	go func() {
		defer close(done)
		if now {
			fn(ctx)
		}
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// Stop cancels the interval and waits for its goroutine to exit. It must
// not be called from inside the interval's own function.
func (iv *Interval) Stop() {
	iv.mu.Lock()
	cancel, done := iv.cancel, iv.done
	iv.cancel, iv.done = nil, nil
	iv.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the interval is active.
func (iv *Interval) Running() bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.cancel != nil
}
