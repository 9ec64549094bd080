package mining

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestReconciler_RewardClearsAfterDelay(t *testing.T) {
	r := NewReconciler(30 * time.Millisecond)
	defer r.Stop()

	var cleared atomic.Int32
	r.OnRewardCleared(func() { cleared.Add(1) })

	r.Apply(Metrics{CPU: &SourceMetrics{PoolUnpaid: unpaid(1_000_000)}})
	r.Apply(Metrics{CPU: &SourceMetrics{PoolUnpaid: unpaid(2_000_000)}})

	if got := r.Rewards(); len(got) != 1 || got[0].Amount != 1 {
		t.Fatalf("visible rewards = %+v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for cleared.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cleared.Load() != 1 {
		t.Fatalf("cleared = %d, want 1", cleared.Load())
	}
	if got := r.Rewards(); len(got) != 0 {
		t.Fatalf("rewards still visible: %+v", got)
	}
}

func TestReconciler_StopCancelsClear(t *testing.T) {
	r := NewReconciler(20 * time.Millisecond)

	var cleared atomic.Int32
	r.OnRewardCleared(func() { cleared.Add(1) })

	r.Apply(Metrics{GPU: &SourceMetrics{PoolUnpaid: unpaid(1_000_000)}})
	r.Apply(Metrics{GPU: &SourceMetrics{PoolUnpaid: unpaid(1_500_000)}})
	r.Stop()

	time.Sleep(60 * time.Millisecond)
	if cleared.Load() != 0 {
		t.Fatal("clear fired after Stop")
	}
}

func TestReconciler_StateIsCopy(t *testing.T) {
	r := NewReconciler(0)
	defer r.Stop()

	r.Apply(Metrics{CPU: &SourceMetrics{HashRate: 10}})
	st := r.State()
	st.Sources[SourceCPU] = SourceState{HashRate: 999}
	if r.State().Sources[SourceCPU].HashRate != 10 {
		t.Fatal("State exposed internal map")
	}
}
