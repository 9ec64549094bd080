// Package telemetry exposes prometheus metrics for the reconciliation core.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "klingnet_miner"

var (
	pollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poll",
		Name:      "fetch_total",
		Help:      "Count of backend fetches issued by the polling supervisor.",
	}, []string{"target", "status"})

	rewardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mining",
		Name:      "rewards_total",
		Help:      "Count of reward events detected from pool unpaid balances.",
	}, []string{"source"})

	hashRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mining",
		Name:      "hash_rate",
		Help:      "Latest reported hash rate per source.",
	}, []string{"source"})

	mergeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "history",
		Name:      "merge_total",
		Help:      "Count of transaction merges by outcome.",
	}, []string{"result"})

	phaseProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "setup",
		Name:      "phase_progress",
		Help:      "Latest progress per setup phase.",
	}, []string{"phase"})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "received_total",
		Help:      "Count of backend events by name and decode status.",
	}, []string{"event", "status"})
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveFetch records one supervisor fetch outcome.
func ObserveFetch(target string, err error) {
	pollTotal.WithLabelValues(target, status(err)).Inc()
}

// ObserveReward records a detected reward.
func ObserveReward(source string) {
	rewardsTotal.WithLabelValues(source).Inc()
}

// SetHashRate records the latest hash rate of a source.
func SetHashRate(source string, rate float64) {
	hashRate.WithLabelValues(source).Set(rate)
}

// ObserveMerge records whether a merge changed the transaction list.
func ObserveMerge(changed bool) {
	result := "unchanged"
	if changed {
		result = "changed"
	}
	mergeTotal.WithLabelValues(result).Inc()
}

// SetPhaseProgress records the latest progress of a setup phase.
func SetPhaseProgress(phase string, progress float64) {
	phaseProgress.WithLabelValues(phase).Set(progress)
}

// ObserveEvent records one received backend event.
func ObserveEvent(event string, err error) {
	eventsTotal.WithLabelValues(event, status(err)).Inc()
}
