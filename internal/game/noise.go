package game

import (
	"math"
	"math/rand"
)

// Noise flips each chosen action independently with probability Epsilon.
// A nil *Noise is a pass-through.
type Noise struct {
	Epsilon float64 `json:"epsilon"`
}

func NewNoise(epsilon float64) (*Noise, error) {
	n := &Noise{Epsilon: epsilon}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Noise) Validate() error {
	if n == nil {
		return nil
	}
	if math.IsNaN(n.Epsilon) || n.Epsilon < 0 || n.Epsilon > 1 {
		return ConfigErrorf("noise epsilon must be in [0, 1], got %g", n.Epsilon)
	}
	return nil
}

// Apply returns the effective action. Zero noise never consumes randomness.
func (n *Noise) Apply(action Action, rng *rand.Rand) Action {
	if n == nil || n.Epsilon <= 0 {
		return action
	}
	if rng.Float64() < n.Epsilon {
		return action.Flip()
	}
	return action
}
