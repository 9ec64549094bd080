package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeBackend struct {
	flag       atomic.Bool
	flagCalls  atomic.Int32
	fetchCalls atomic.Int32
	fetchErr   atomic.Bool
}

func (f *fakeBackend) Flag(context.Context) (bool, error) {
	f.flagCalls.Add(1)
	return f.flag.Load(), nil
}

func (f *fakeBackend) Fetch(context.Context) error {
	f.fetchCalls.Add(1)
	if f.fetchErr.Load() {
		return errors.New("backend unavailable")
	}
	return nil
}

func newTestSupervisor(f *fakeBackend, cfg Config) *Supervisor {
	return NewSupervisor(f.Flag, f.Fetch, cfg)
}

func TestSupervisor_FlagFetchedImmediatelyAndOnInterval(t *testing.T) {
	f := &fakeBackend{}
	s := newTestSupervisor(f, Config{FlagInterval: 15 * time.Millisecond, PollInterval: time.Hour, FocusDebounce: time.Hour})
	s.Start(context.Background())
	defer s.Stop()

	if !waitFor(t, time.Second, func() bool { return f.flagCalls.Load() >= 1 }) {
		t.Fatal("flag not fetched at start")
	}
	if !waitFor(t, time.Second, func() bool { return f.flagCalls.Load() >= 3 }) {
		t.Fatalf("flag calls = %d, want >= 3", f.flagCalls.Load())
	}
	if f.fetchCalls.Load() != 0 {
		t.Error("primary fetch ran while flag is off")
	}
}

func TestSupervisor_FlagOnStartsPrimaryPoll(t *testing.T) {
	f := &fakeBackend{}
	f.flag.Store(true)
	s := newTestSupervisor(f, Config{FlagInterval: time.Hour, PollInterval: 15 * time.Millisecond, FocusDebounce: time.Hour})
	s.Start(context.Background())
	defer s.Stop()

	if !waitFor(t, time.Second, func() bool { return f.fetchCalls.Load() >= 3 }) {
		t.Fatalf("fetch calls = %d, want >= 3", f.fetchCalls.Load())
	}
	if !s.Enabled() {
		t.Error("Enabled() = false with flag on")
	}
}

func TestSupervisor_FlagOffStopsPrimaryPoll(t *testing.T) {
	f := &fakeBackend{}
	f.flag.Store(true)
	s := newTestSupervisor(f, Config{FlagInterval: time.Hour, PollInterval: 10 * time.Millisecond, FocusDebounce: time.Hour})
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return f.fetchCalls.Load() >= 2 })

	f.flag.Store(false)
	s.CheckFlag()
	if s.Enabled() {
		t.Fatal("Enabled() = true after flag flipped off")
	}

	n := f.fetchCalls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := f.fetchCalls.Load(); got != n {
		t.Errorf("fetch calls went %d -> %d after disable", n, got)
	}
}

func TestSupervisor_FocusDebouncesPrimaryFetch(t *testing.T) {
	f := &fakeBackend{}
	f.flag.Store(true)
	s := newTestSupervisor(f, Config{FlagInterval: time.Hour, PollInterval: time.Hour, FocusDebounce: 30 * time.Millisecond})
	s.Start(context.Background())
	defer s.Stop()

	if !waitFor(t, time.Second, func() bool { return f.fetchCalls.Load() == 1 }) {
		t.Fatal("immediate fetch on enable did not run")
	}

	for i := 0; i < 8; i++ {
		s.Focus()
		time.Sleep(2 * time.Millisecond)
	}
	if !waitFor(t, time.Second, func() bool { return f.fetchCalls.Load() == 2 }) {
		t.Fatalf("fetch calls = %d, want 2", f.fetchCalls.Load())
	}
	time.Sleep(60 * time.Millisecond)
	if got := f.fetchCalls.Load(); got != 2 {
		t.Errorf("fetch calls = %d after focus burst, want 2", got)
	}
	// Focus while enabled does not re-check the flag.
	if got := f.flagCalls.Load(); got != 1 {
		t.Errorf("flag calls = %d, want 1", got)
	}
}

func TestSupervisor_FocusWhileDisabledChecksFlag(t *testing.T) {
	f := &fakeBackend{}
	s := newTestSupervisor(f, Config{FlagInterval: time.Hour, PollInterval: time.Hour, FocusDebounce: time.Hour})
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return f.flagCalls.Load() == 1 })

	f.flag.Store(true)
	s.Focus()
	if !waitFor(t, time.Second, func() bool { return f.flagCalls.Load() == 2 }) {
		t.Fatal("focus while disabled did not re-check the flag")
	}
	if !waitFor(t, time.Second, func() bool { return s.Enabled() && f.fetchCalls.Load() == 1 }) {
		t.Error("flag flip on focus did not start the primary poll")
	}
}

func TestSupervisor_DisableCancelsPendingFocusFetch(t *testing.T) {
	f := &fakeBackend{}
	f.flag.Store(true)
	s := newTestSupervisor(f, Config{FlagInterval: time.Hour, PollInterval: time.Hour, FocusDebounce: 40 * time.Millisecond})
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return f.fetchCalls.Load() == 1 })

	s.Focus()
	f.flag.Store(false)
	s.CheckFlag()

	time.Sleep(100 * time.Millisecond)
	if got := f.fetchCalls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1 (debounced fetch should be cancelled)", got)
	}
}

func TestSupervisor_FetchErrorsKeepPolling(t *testing.T) {
	f := &fakeBackend{}
	f.flag.Store(true)
	f.fetchErr.Store(true)
	s := newTestSupervisor(f, Config{FlagInterval: time.Hour, PollInterval: 10 * time.Millisecond, FocusDebounce: time.Hour})
	s.Start(context.Background())
	defer s.Stop()

	if !waitFor(t, time.Second, func() bool { return f.fetchCalls.Load() >= 3 }) {
		t.Fatalf("fetch calls = %d, want retries after errors", f.fetchCalls.Load())
	}
}

func TestSupervisor_StopTearsDownEverything(t *testing.T) {
	f := &fakeBackend{}
	f.flag.Store(true)
	s := newTestSupervisor(f, Config{FlagInterval: 10 * time.Millisecond, PollInterval: 10 * time.Millisecond, FocusDebounce: 20 * time.Millisecond})
	s.Start(context.Background())

	waitFor(t, time.Second, func() bool { return f.fetchCalls.Load() >= 2 })
	s.Focus()
	s.Stop()

	flags, fetches := f.flagCalls.Load(), f.fetchCalls.Load()
	time.Sleep(60 * time.Millisecond)
	if f.flagCalls.Load() != flags || f.fetchCalls.Load() != fetches {
		t.Error("supervisor kept polling after Stop")
	}

	// Focus after Stop is ignored.
	s.Focus()
	s.Stop()
}
