// Package strategy is the catalog of baseline Iterated Prisoner's Dilemma
// strategies. Every type satisfies game.Strategy.
package strategy

import (
	"math/rand"

	"dilemma/internal/game"
)

type AllCooperate struct{}

func (*AllCooperate) Name() string { return "ALLC" }

func (*AllCooperate) Reset() {}

func (*AllCooperate) FirstAction(*rand.Rand) game.Action { return game.Cooperate }

func (*AllCooperate) NextAction(_, _ game.Action, _ *rand.Rand) game.Action {
	return game.Cooperate
}

type AllDefect struct{}

func (*AllDefect) Name() string { return "ALLD" }

func (*AllDefect) Reset() {}

func (*AllDefect) FirstAction(*rand.Rand) game.Action { return game.Defect }

func (*AllDefect) NextAction(_, _ game.Action, _ *rand.Rand) game.Action {
	return game.Defect
}

// TitForTat opens with Opening and then mirrors the opponent.
type TitForTat struct {
	Opening game.Action
}

func NewTitForTat() *TitForTat {
	return &TitForTat{Opening: game.Cooperate}
}

// NewSuspiciousTitForTat opens with a defection.
func NewSuspiciousTitForTat() *TitForTat {
	return &TitForTat{Opening: game.Defect}
}

func (s *TitForTat) Name() string {
	if s.Opening == game.Defect {
		return "STFT"
	}
	return "TFT"
}

func (*TitForTat) Reset() {}

func (s *TitForTat) FirstAction(*rand.Rand) game.Action {
	if s.Opening == game.Defect {
		return game.Defect
	}
	return game.Cooperate
}

func (*TitForTat) NextAction(_, opponent game.Action, _ *rand.Rand) game.Action {
	if opponent == game.NoAction {
		return game.Cooperate
	}
	return opponent
}

// TitForTwoTats defects only after two consecutive opponent defections.
type TitForTwoTats struct {
	streak int
}

func (*TitForTwoTats) Name() string { return "TF2T" }

func (s *TitForTwoTats) Reset() { s.streak = 0 }

func (*TitForTwoTats) FirstAction(*rand.Rand) game.Action { return game.Cooperate }

func (s *TitForTwoTats) NextAction(_, opponent game.Action, _ *rand.Rand) game.Action {
	if opponent == game.Defect {
		s.streak++
	} else {
		s.streak = 0
	}
	if s.streak >= 2 {
		return game.Defect
	}
	return game.Cooperate
}

// GrimTrigger cooperates until the first opponent defection and defects forever after.
type GrimTrigger struct {
	triggered bool
}

func (*GrimTrigger) Name() string { return "GRIM" }

func (s *GrimTrigger) Reset() { s.triggered = false }

func (*GrimTrigger) FirstAction(*rand.Rand) game.Action { return game.Cooperate }

func (s *GrimTrigger) NextAction(_, opponent game.Action, _ *rand.Rand) game.Action {
	if opponent == game.Defect {
		s.triggered = true
	}
	if s.triggered {
		return game.Defect
	}
	return game.Cooperate
}

// WinStayLoseShift repeats its move after R or T and switches after S or P,
// which reduces to cooperating exactly when both sides matched last round.
type WinStayLoseShift struct{}

func (*WinStayLoseShift) Name() string { return "WSLS" }

func (*WinStayLoseShift) Reset() {}

func (*WinStayLoseShift) FirstAction(*rand.Rand) game.Action { return game.Cooperate }

func (*WinStayLoseShift) NextAction(own, opponent game.Action, _ *rand.Rand) game.Action {
	if own == game.NoAction || opponent == game.NoAction {
		return game.Cooperate
	}
	if own == opponent {
		return game.Cooperate
	}
	return game.Defect
}
