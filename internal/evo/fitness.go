package evo

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"dilemma/internal/game"
)

// Interactions is the pairwise outcome table a tournament produces, indexed
// by catalog position.
type Interactions interface {
	MeanPayoffAgainst(i, j int) (float64, bool)
	CooperationAgainst(i, j int) (float64, bool)
}

// FitnessMetric turns the interaction table into the fitness of strategy i
// when opponents are met in proportion to weights.
type FitnessMetric interface {
	Name() string
	Fitness(table Interactions, i int, weights []float64) float64
}

type MeanPayoffMetric struct{}

func (MeanPayoffMetric) Name() string {
	return "mean_payoff"
}

func (MeanPayoffMetric) Fitness(table Interactions, i int, weights []float64) float64 {
	values, w := collect(table.MeanPayoffAgainst, i, weights)
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, w)
}

// MedianPayoffMetric is the weighted median of per-opponent payoffs, which
// damps the pull of a single lopsided matchup.
type MedianPayoffMetric struct{}

func (MedianPayoffMetric) Name() string {
	return "median_payoff"
}

func (MedianPayoffMetric) Fitness(table Interactions, i int, weights []float64) float64 {
	values, w := collect(table.MeanPayoffAgainst, i, weights)
	if len(values) == 0 {
		return 0
	}
	sortPaired(values, w)
	return stat.Quantile(0.5, stat.Empirical, values, w)
}

type CooperationRateMetric struct{}

func (CooperationRateMetric) Name() string {
	return "cooperation_rate"
}

func (CooperationRateMetric) Fitness(table Interactions, i int, weights []float64) float64 {
	values, w := collect(table.CooperationAgainst, i, weights)
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, w)
}

// FitnessMetricByName resolves the configured metric name.
func FitnessMetricByName(name string) (FitnessMetric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mean_payoff":
		return MeanPayoffMetric{}, nil
	case "median_payoff":
		return MedianPayoffMetric{}, nil
	case "cooperation_rate":
		return CooperationRateMetric{}, nil
	default:
		return nil, game.ConfigErrorf("unknown fitness metric %q", name)
	}
}

func collect(lookup func(i, j int) (float64, bool), i int, weights []float64) ([]float64, []float64) {
	values := make([]float64, 0, len(weights))
	w := make([]float64, 0, len(weights))
	for j, weight := range weights {
		if weight <= 0 {
			continue
		}
		v, ok := lookup(i, j)
		if !ok {
			continue
		}
		values = append(values, v)
		w = append(w, weight)
	}
	return values, w
}

type pairedSort struct {
	values  []float64
	weights []float64
}

func (p pairedSort) Len() int           { return len(p.values) }
func (p pairedSort) Less(i, j int) bool { return p.values[i] < p.values[j] }
func (p pairedSort) Swap(i, j int) {
	p.values[i], p.values[j] = p.values[j], p.values[i]
	p.weights[i], p.weights[j] = p.weights[j], p.weights[i]
}

func sortPaired(values, weights []float64) {
	sort.Stable(pairedSort{values: values, weights: weights})
}
