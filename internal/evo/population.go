package evo

import (
	"math"
	"sort"
	"strings"

	"dilemma/internal/game"
)

// Tolerance bounds every share-sum check.
const Tolerance = 1e-9

type Mode string

const (
	// FrequencyMode shares are fractions summing to 1.
	FrequencyMode Mode = "frequency"
	// CountMode shares are integer head counts summing to a fixed N.
	CountMode Mode = "count"
)

func ParseMode(s string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(s))); mode {
	case FrequencyMode, CountMode:
		return mode, nil
	case "":
		return FrequencyMode, nil
	default:
		return "", game.ConfigErrorf("unknown population mode %q", s)
	}
}

// Population maps catalog strategy names to their share of Total.
type Population struct {
	Mode   Mode
	Total  float64
	Shares map[string]float64
}

// NewFrequencyPopulation normalizes non-negative weights to frequencies.
func NewFrequencyPopulation(weights map[string]float64) (Population, error) {
	sum := 0.0
	for name, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return Population{}, game.ConfigErrorf("share for %s must be finite and >= 0, got %g", name, w)
		}
		sum += w
	}
	if sum <= 0 {
		return Population{}, game.ConfigErrorf("population total must be > 0")
	}
	shares := make(map[string]float64, len(weights))
	for name, w := range weights {
		shares[name] = w / sum
	}
	return Population{Mode: FrequencyMode, Total: 1, Shares: shares}, nil
}

// UniformPopulation spreads frequency evenly over names.
func UniformPopulation(names []string) (Population, error) {
	weights := make(map[string]float64, len(names))
	for _, name := range names {
		weights[name] = 1
	}
	return NewFrequencyPopulation(weights)
}

func NewCountPopulation(counts map[string]int) (Population, error) {
	shares := make(map[string]float64, len(counts))
	total := 0
	for name, c := range counts {
		if c < 0 {
			return Population{}, game.ConfigErrorf("count for %s must be >= 0, got %d", name, c)
		}
		shares[name] = float64(c)
		total += c
	}
	if total <= 0 {
		return Population{}, game.ConfigErrorf("population total must be > 0")
	}
	return Population{Mode: CountMode, Total: float64(total), Shares: shares}, nil
}

// Validate checks the share invariants against the catalog.
func (p Population) Validate(catalog []string) error {
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return err
	}
	if !(p.Total > 0) || math.IsInf(p.Total, 0) {
		return game.ConfigErrorf("population total must be > 0, got %g", p.Total)
	}
	if p.Mode == FrequencyMode && math.Abs(p.Total-1) > Tolerance {
		return game.ConfigErrorf("frequency population total must be 1, got %g", p.Total)
	}
	known := make(map[string]struct{}, len(catalog))
	for _, name := range catalog {
		known[name] = struct{}{}
	}
	for name, share := range p.Shares {
		if _, ok := known[name]; !ok {
			return game.ConfigErrorf("population names unknown strategy %s", name)
		}
		if math.IsNaN(share) || share < 0 {
			return game.ConfigErrorf("share for %s must be >= 0, got %g", name, share)
		}
		if p.Mode == CountMode && share != math.Trunc(share) {
			return game.ConfigErrorf("count for %s must be an integer, got %g", name, share)
		}
	}
	if p.Mode == CountMode && p.Total != math.Trunc(p.Total) {
		return game.ConfigErrorf("count population total must be an integer, got %g", p.Total)
	}
	if sum := p.Sum(); math.Abs(sum-p.Total) > Tolerance {
		return game.ConfigErrorf("shares sum to %g, want %g", sum, p.Total)
	}
	return nil
}

// Sum adds shares in name order so the result is reproducible.
func (p Population) Sum() float64 {
	sum := 0.0
	for _, name := range p.Names() {
		sum += p.Shares[name]
	}
	return sum
}

func (p Population) Names() []string {
	names := make([]string, 0, len(p.Shares))
	for name := range p.Shares {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Support lists strategies with a positive share, sorted.
func (p Population) Support() []string {
	out := make([]string, 0, len(p.Shares))
	for _, name := range p.Names() {
		if p.Shares[name] > 0 {
			out = append(out, name)
		}
	}
	return out
}

// Frequency is the share of name as a fraction of Total.
func (p Population) Frequency(name string) float64 {
	if p.Total <= 0 {
		return 0
	}
	return p.Shares[name] / p.Total
}

// Dominant returns the strategy with the largest share, ties by name.
func (p Population) Dominant() (string, float64) {
	best, bestShare := "", -1.0
	for _, name := range p.Names() {
		if share := p.Shares[name]; share > bestShare {
			best, bestShare = name, share
		}
	}
	return best, p.Frequency(best)
}

func (p Population) Clone() Population {
	shares := make(map[string]float64, len(p.Shares))
	for name, share := range p.Shares {
		shares[name] = share
	}
	return Population{Mode: p.Mode, Total: p.Total, Shares: shares}
}

// vector lays shares out in catalog order; absent names are zero.
func (p Population) vector(catalog []string) []float64 {
	out := make([]float64, len(catalog))
	for i, name := range catalog {
		out[i] = p.Shares[name]
	}
	return out
}

func fromVector(mode Mode, total float64, catalog []string, shares []float64) Population {
	out := Population{Mode: mode, Total: total, Shares: make(map[string]float64, len(catalog))}
	for i, name := range catalog {
		out.Shares[name] = shares[i]
	}
	return out
}
