// Package metrics exposes Prometheus instrumentation for the simulation
// engines. Collectors register on the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dilemma"

var (
	// matchesTotal counts finished matches.
	// Labels: mode (pairing mode), outcome (completed, violation)
	matchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tournament",
		Name:      "matches_total",
		Help:      "Matches played by pairing mode and outcome",
	}, []string{"mode", "outcome"})

	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tournament",
		Name:      "rounds_total",
		Help:      "Stage-game rounds played across all completed matches",
	})

	tournamentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tournament",
		Name:      "duration_seconds",
		Help:      "Wall time of a full tournament run",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"mode"})

	generationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evolution",
		Name:      "generations_total",
		Help:      "Replicator updates applied",
	})

	// evolutionRuns counts finished evolutionary runs.
	// Labels: stop (generations, stable, error)
	evolutionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evolution",
		Name:      "runs_total",
		Help:      "Evolution runs by stop reason",
	}, []string{"stop"})
)

// RecordMatch counts one match. Rounds are only added for completed matches.
func RecordMatch(mode string, rounds int, violated bool) {
	if violated {
		matchesTotal.WithLabelValues(mode, "violation").Inc()
		return
	}
	matchesTotal.WithLabelValues(mode, "completed").Inc()
	roundsTotal.Add(float64(rounds))
}

func ObserveTournament(mode string, seconds float64) {
	tournamentDuration.WithLabelValues(mode).Observe(seconds)
}

func RecordGeneration() {
	generationsTotal.Inc()
}

func RecordEvolution(stop string) {
	evolutionRuns.WithLabelValues(stop).Inc()
}
