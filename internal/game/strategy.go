package game

import "math/rand"

// Strategy is the behavioural contract the match engine drives. Internal
// memory belongs to the instance and is cleared by Reset, which the engine
// calls exactly once before the first round of every match.
type Strategy interface {
	Name() string
	Reset()
	FirstAction(rng *rand.Rand) Action
	// NextAction receives the previous effective (post-noise) actions, never
	// the pre-noise intent.
	NextAction(own, opponent Action, rng *rand.Rand) Action
}

// Player binds a strategy instance to the identity it competes under.
type Player struct {
	Name     string
	Strategy Strategy
}

func (p Player) Label() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Strategy == nil {
		return ""
	}
	return p.Strategy.Name()
}
