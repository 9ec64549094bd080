package mining

import "math"

// Source identifies the producer of a metric reading.
type Source string

const (
	SourceCPU Source = "cpu"
	SourceGPU Source = "gpu"
)

// HashRateThreshold is the relative hash rate change treated as meaningful.
const HashRateThreshold = 0.05

// SourceMetrics is one source's section of a miner_metrics payload.
type SourceMetrics struct {
	IsMining   bool    `json:"is_mining"`
	HashRate   float64 `json:"hash_rate"`
	PoolUnpaid *uint64 `json:"pool_unpaid,omitempty"` // micro-units; nil when not pool mining
}

// NodeMetrics is the base-node section of a miner_metrics payload.
type NodeMetrics struct {
	BlockHeight uint64 `json:"block_height"`
	IsConnected bool   `json:"is_connected"`
}

// Metrics is the miner_metrics event payload. Absent sections carry no
// data and leave the corresponding state untouched.
type Metrics struct {
	CPU  *SourceMetrics `json:"cpu,omitempty"`
	GPU  *SourceMetrics `json:"gpu,omitempty"`
	Node *NodeMetrics   `json:"base_node,omitempty"`
}

// SourceState is the last reading kept per source.
type SourceState struct {
	IsMining  bool    `json:"is_mining"`
	HashRate  float64 `json:"hash_rate"`
	Unpaid    Ticks   `json:"unpaid"`
	HasUnpaid bool    `json:"has_unpaid"`
}

// State holds only the immediate predecessor of every reading.
type State struct {
	Sources     map[Source]SourceState `json:"sources"`
	BlockHeight uint64                 `json:"block_height"`
	Connected   bool                   `json:"connected"`
}

// EffectKind names a derived side effect.
type EffectKind string

const (
	EffectReward   EffectKind = "reward"
	EffectHashRate EffectKind = "hash_rate"
	EffectNewBlock EffectKind = "new_block"
)

// Effect is a side effect derived from comparing two snapshots.
type Effect struct {
	Kind     EffectKind `json:"kind"`
	Source   Source     `json:"source,omitempty"`
	Amount   float64    `json:"amount,omitempty"`
	HashRate float64    `json:"hash_rate,omitempty"`
	Height   uint64     `json:"height,omitempty"`
}

// Reconcile folds a snapshot into prev and returns the next state and the
// effects the change warrants. prev is not modified.
func Reconcile(prev State, m Metrics) (State, []Effect) {
	next := State{
		Sources:     make(map[Source]SourceState, len(prev.Sources)),
		BlockHeight: prev.BlockHeight,
		Connected:   prev.Connected,
	}
	for k, v := range prev.Sources {
		next.Sources[k] = v
	}

	var effects []Effect
	for _, sec := range []struct {
		src Source
		m   *SourceMetrics
	}{{SourceCPU, m.CPU}, {SourceGPU, m.GPU}} {
		if sec.m == nil {
			continue
		}
		st, fx := reconcileSource(sec.src, prev.Sources[sec.src], *sec.m)
		next.Sources[sec.src] = st
		effects = append(effects, fx...)
	}

	if m.Node != nil {
		if prev.BlockHeight != 0 && m.Node.BlockHeight > prev.BlockHeight {
			effects = append(effects, Effect{Kind: EffectNewBlock, Height: m.Node.BlockHeight})
		}
		if m.Node.BlockHeight > next.BlockHeight {
			next.BlockHeight = m.Node.BlockHeight
		}
		next.Connected = m.Node.IsConnected
	}

	return next, effects
}

func reconcileSource(src Source, prev SourceState, m SourceMetrics) (SourceState, []Effect) {
	var effects []Effect
	rate := m.HashRate
	if math.IsNaN(rate) || rate < 0 {
		rate = 0
	}

	next := prev
	next.IsMining = m.IsMining
	next.HashRate = rate
	if HashRateChanged(prev.HashRate, rate) {
		effects = append(effects, Effect{Kind: EffectHashRate, Source: src, HashRate: rate})
	}

	if m.PoolUnpaid != nil {
		current := TicksFromMicro(*m.PoolUnpaid)
		balance, diff, ok := ReconcileBalance(prev.Unpaid, current)
		next.Unpaid = balance
		next.HasUnpaid = true
		if ok {
			effects = append(effects, Effect{Kind: EffectReward, Source: src, Amount: diff.Coins()})
		}
	}
	return next, effects
}

// HashRateChanged reports whether a hash rate moved enough to notify the
// UI: mining started or stopped, or the rate changed by at least
// HashRateThreshold relative to the previous value.
func HashRateChanged(prev, next float64) bool {
	switch {
	case prev == next:
		return false
	case prev == 0 || next == 0:
		return true
	}
	return math.Abs(next-prev)/prev >= HashRateThreshold
}
