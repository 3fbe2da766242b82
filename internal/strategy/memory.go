package strategy

import (
	"fmt"
	"math/rand"

	"dilemma/internal/game"
)

// MemoryOne cooperates with a probability conditioned on the previous joint
// state seen from its own side, indexed CC, CD, DC, DD.
type MemoryOne struct {
	Label   string
	Initial float64
	Probs   [4]float64
}

func NewMemoryOne(initial float64, probs [4]float64) (*MemoryOne, error) {
	if err := checkProbability("p0", initial); err != nil {
		return nil, err
	}
	for i, p := range probs {
		if err := checkProbability(fmt.Sprintf("p%d", i+1), p); err != nil {
			return nil, err
		}
	}
	return &MemoryOne{Initial: initial, Probs: probs}, nil
}

func (s *MemoryOne) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("MEM1(%.2f,%.2f,%.2f,%.2f)", s.Probs[0], s.Probs[1], s.Probs[2], s.Probs[3])
}

func (*MemoryOne) Reset() {}

func (s *MemoryOne) FirstAction(rng *rand.Rand) game.Action {
	return cooperateWith(s.Initial, rng)
}

func (s *MemoryOne) NextAction(own, opponent game.Action, rng *rand.Rand) game.Action {
	if own == game.NoAction || opponent == game.NoAction {
		return cooperateWith(s.Initial, rng)
	}
	return cooperateWith(s.Probs[game.JointState(own, opponent)], rng)
}

// NewZDExtortion builds the zero-determinant extortioner that enforces
// (s_X - P) = chi (s_Y - P). phiScale in (0, 1] picks phi as a fraction of
// its largest feasible value.
func NewZDExtortion(chi, phiScale float64, payoffs game.PayoffMatrix) (*MemoryOne, error) {
	if err := payoffs.Validate(); err != nil {
		return nil, err
	}
	if chi < 1 {
		return nil, game.ConfigErrorf("zd extortion factor chi must be >= 1, got %g", chi)
	}
	if phiScale <= 0 || phiScale > 1 {
		return nil, game.ConfigErrorf("zd phi scale must be in (0, 1], got %g", phiScale)
	}
	r, s, t, p := payoffs.Reward, payoffs.Sucker, payoffs.Temptation, payoffs.Punishment

	bound := 1 / ((p - s) + chi*(t-p))
	if alt := 1 / ((t - p) + chi*(p-s)); alt < bound {
		bound = alt
	}
	phi := phiScale * bound

	probs := [4]float64{
		1 - phi*(chi-1)*(r-p),
		1 - phi*((p-s)+chi*(t-p)),
		phi * ((t - p) + chi*(p-s)),
		0,
	}
	for i := range probs {
		probs[i] = clamp01(probs[i])
	}
	m, err := NewMemoryOne(0, probs)
	if err != nil {
		return nil, err
	}
	m.Initial = probs[0]
	m.Label = fmt.Sprintf("ZDX(%.2f)", chi)
	return m, nil
}

func cooperateWith(p float64, rng *rand.Rand) game.Action {
	if p >= 1 {
		return game.Cooperate
	}
	if p <= 0 {
		return game.Defect
	}
	if rng.Float64() < p {
		return game.Cooperate
	}
	return game.Defect
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
