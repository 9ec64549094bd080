// Package mining reconciles periodic miner metric snapshots against the
// previous snapshot and derives UI side effects from the difference.
package mining

import "math"

const (
	// MicroPerCoin is the number of backend micro-units in one coin.
	MicroPerCoin = 1_000_000
	// TickScale is the precision balances are truncated to (4 decimals).
	TickScale = 10_000
)

// Ticks is a balance in ten-thousandths of a coin. Comparing integers
// instead of floats keeps sub-precision noise from looking like a reward.
type Ticks int64

// TicksFromMicro normalizes a raw micro-unit reading and truncates it to
// 4 decimal places.
func TicksFromMicro(raw uint64) Ticks {
	return Ticks(raw / (MicroPerCoin / TickScale))
}

// TicksFromCoins truncates a coin amount to 4 decimal places.
func TicksFromCoins(v float64) Ticks {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return Ticks(math.Floor(v * TickScale))
}

// Coins converts ticks back to a coin amount.
func (t Ticks) Coins() float64 {
	return float64(t) / TickScale
}

// ReconcileBalance compares a new balance against the previous one. It
// returns the balance to remember and, when the balance grew, the reward.
//
// Growth from a zero baseline is treated as initialization: the first
// nonzero reading would otherwise show the entire balance as one reward.
// The returned balance is always current, also when it shrank after a
// payout.
func ReconcileBalance(prev, current Ticks) (next Ticks, reward Ticks, ok bool) {
	if current <= prev {
		return current, 0, false
	}
	diff := current - prev
	if diff == current {
		return current, 0, false
	}
	return current, diff, true
}
