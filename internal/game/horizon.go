package game

import (
	"math"
	"math/rand"
)

// Horizon decides match length: exactly one of Rounds (fixed) or
// Continuation (geometric, probability of playing another round) is set.
type Horizon struct {
	Rounds       int     `json:"rounds,omitempty"`
	Continuation float64 `json:"continuation,omitempty"`
}

func FixedHorizon(rounds int) Horizon {
	return Horizon{Rounds: rounds}
}

func GeometricHorizon(continuation float64) Horizon {
	return Horizon{Continuation: continuation}
}

func (h Horizon) Validate() error {
	fixed := h.Rounds != 0
	geometric := h.Continuation != 0
	switch {
	case fixed && geometric:
		return ConfigErrorf("horizon sets both rounds=%d and continuation=%g", h.Rounds, h.Continuation)
	case !fixed && !geometric:
		return ConfigErrorf("horizon requires rounds or continuation")
	case fixed && h.Rounds < 1:
		return ConfigErrorf("horizon rounds must be >= 1, got %d", h.Rounds)
	case geometric && (math.IsNaN(h.Continuation) || h.Continuation <= 0 || h.Continuation >= 1):
		return ConfigErrorf("horizon continuation must be in (0, 1), got %g", h.Continuation)
	}
	return nil
}

func (h Horizon) Fixed() bool {
	return h.Rounds > 0
}

// ExpectedLength is n for a fixed horizon and 1/(1-delta) for a geometric one.
func (h Horizon) ExpectedLength() float64 {
	if h.Fixed() {
		return float64(h.Rounds)
	}
	return 1 / (1 - h.Continuation)
}

// continues reports whether another round follows the given number of played
// rounds. Geometric horizons draw exactly once per call.
func (h Horizon) continues(played int, rng *rand.Rand) bool {
	if h.Fixed() {
		return played < h.Rounds
	}
	return rng.Float64() < h.Continuation
}
