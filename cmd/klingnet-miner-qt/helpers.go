package main

import (
	"fmt"
	"strings"

	"github.com/Klingon-tech/klingnet-miner/internal/mining"
)

// coinSymbol is the native coin ticker.
const coinSymbol = "KGX"

// formatReward renders a reward effect for a notification.
func formatReward(e mining.Effect) string {
	return fmt.Sprintf("+%.4f %s (%s)", e.Amount, coinSymbol, strings.ToUpper(string(e.Source)))
}

var hashUnits = []string{"H/s", "kH/s", "MH/s", "GH/s", "TH/s"}

// formatHashRate renders a hash rate with a scaled unit.
func formatHashRate(rate float64) string {
	if rate <= 0 {
		return "0 H/s"
	}
	i := 0
	for rate >= 1000 && i < len(hashUnits)-1 {
		rate /= 1000
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f %s", rate, hashUnits[i])
	}
	return fmt.Sprintf("%.2f %s", rate, hashUnits[i])
}
