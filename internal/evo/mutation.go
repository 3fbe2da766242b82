package evo

import (
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"dilemma/internal/game"
)

// MutationPolicy selects where mutant mass lands.
type MutationPolicy string

const (
	// MutationAbsentOnly reintroduces strategies missing from the support and
	// does nothing once every catalog strategy is present.
	MutationAbsentOnly MutationPolicy = "absent_only"
	// MutationUniform spreads mutants over the whole catalog.
	MutationUniform MutationPolicy = "uniform"
)

func ParseMutationPolicy(s string) (MutationPolicy, error) {
	switch policy := MutationPolicy(strings.ToLower(strings.TrimSpace(s))); policy {
	case MutationAbsentOnly, MutationUniform:
		return policy, nil
	case "":
		return MutationAbsentOnly, nil
	default:
		return "", game.ConfigErrorf("unknown mutation policy %q", s)
	}
}

func (p MutationPolicy) destinations(shares []float64) []int {
	out := make([]int, 0, len(shares))
	for i, share := range shares {
		if p == MutationUniform || share <= 0 {
			out = append(out, i)
		}
	}
	return out
}

// mutateFrequency moves a fraction rate of every strategy's mass and spreads
// it evenly over the policy destinations. It returns the moved mass.
func mutateFrequency(shares []float64, rate float64, policy MutationPolicy) ([]float64, float64) {
	out := append([]float64(nil), shares...)
	dest := policy.destinations(shares)
	if rate <= 0 || len(dest) == 0 {
		return out, 0
	}
	moved := 0.0
	for i := range out {
		take := out[i] * rate
		out[i] -= take
		moved += take
	}
	each := moved / float64(len(dest))
	for _, i := range dest {
		out[i] += each
	}
	return out, moved
}

// mutateCount draws Binomial(N, rate) mutants; each leaves an origin chosen in
// proportion to the remaining counts and joins a destination chosen uniformly.
func mutateCount(shares []float64, rate float64, policy MutationPolicy, src rand.Source) ([]float64, float64) {
	out := append([]float64(nil), shares...)
	dest := policy.destinations(shares)
	if rate <= 0 || len(dest) == 0 {
		return out, 0
	}
	n := 0.0
	for _, c := range out {
		n += c
	}
	mutants := distuv.Binomial{N: n, P: rate, Src: src}.Rand()
	if mutants <= 0 {
		return out, 0
	}

	origin := distuv.NewCategorical(append([]float64(nil), out...), src)
	uniform := make([]float64, len(dest))
	for i := range uniform {
		uniform[i] = 1
	}
	target := distuv.NewCategorical(uniform, src)

	remaining := append([]float64(nil), out...)
	for k := 0; k < int(mutants); k++ {
		from := int(origin.Rand())
		remaining[from]--
		origin.Reweight(from, remaining[from])
		to := dest[int(target.Rand())]
		out[from]--
		out[to]++
	}
	return out, mutants
}
