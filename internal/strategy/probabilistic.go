package strategy

import (
	"fmt"
	"math"
	"math/rand"

	"dilemma/internal/game"
)

// Random cooperates with probability P every round.
type Random struct {
	P float64
}

func NewRandom(p float64) (*Random, error) {
	if err := checkProbability("p", p); err != nil {
		return nil, err
	}
	return &Random{P: p}, nil
}

func (s *Random) Name() string { return fmt.Sprintf("RAND(%.2f)", s.P) }

func (*Random) Reset() {}

func (s *Random) FirstAction(rng *rand.Rand) game.Action { return s.draw(rng) }

func (s *Random) NextAction(_, _ game.Action, rng *rand.Rand) game.Action { return s.draw(rng) }

func (s *Random) draw(rng *rand.Rand) game.Action {
	if rng.Float64() < s.P {
		return game.Cooperate
	}
	return game.Defect
}

// GenerousTitForTat forgives a defection with probability ForgiveP.
type GenerousTitForTat struct {
	ForgiveP float64
}

func NewGenerousTitForTat(forgiveP float64) (*GenerousTitForTat, error) {
	if err := checkProbability("forgive_p", forgiveP); err != nil {
		return nil, err
	}
	return &GenerousTitForTat{ForgiveP: forgiveP}, nil
}

func (s *GenerousTitForTat) Name() string { return fmt.Sprintf("GTFT(%.2f)", s.ForgiveP) }

func (*GenerousTitForTat) Reset() {}

func (*GenerousTitForTat) FirstAction(*rand.Rand) game.Action { return game.Cooperate }

func (s *GenerousTitForTat) NextAction(_, opponent game.Action, rng *rand.Rand) game.Action {
	if opponent != game.Defect {
		return game.Cooperate
	}
	if rng.Float64() < s.ForgiveP {
		return game.Cooperate
	}
	return game.Defect
}

// ContriteTitForTat tracks standing for both sides: it punishes a defection
// only when it was itself in good standing, and accepts punishment after its
// own noisy defections instead of echoing them.
type ContriteTitForTat struct {
	ownGood      bool
	opponentGood bool
}

func (*ContriteTitForTat) Name() string { return "CTFT" }

func (s *ContriteTitForTat) Reset() {
	s.ownGood = true
	s.opponentGood = true
}

func (*ContriteTitForTat) FirstAction(*rand.Rand) game.Action { return game.Cooperate }

func (s *ContriteTitForTat) NextAction(own, opponent game.Action, _ *rand.Rand) game.Action {
	if own != game.NoAction && opponent != game.NoAction {
		ownGood := own == game.Cooperate || !s.opponentGood
		opponentGood := opponent == game.Cooperate || !s.ownGood
		s.ownGood, s.opponentGood = ownGood, opponentGood
	}
	if s.ownGood && !s.opponentGood {
		return game.Defect
	}
	return game.Cooperate
}

func checkProbability(name string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return game.ConfigErrorf("%s must be in [0, 1], got %g", name, p)
	}
	return nil
}
