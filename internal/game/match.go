package game

import (
	"context"
	"math/rand"

	"dilemma/internal/model"
)

// Cancellation is polled every ctxCheckInterval rounds.
const ctxCheckInterval = 256

const (
	StateCC = iota
	StateCD
	StateDC
	StateDD
)

var stateNames = [4]string{"CC", "CD", "DC", "DD"}

// JointState indexes the effective joint action from side A's perspective.
func JointState(a, b Action) int {
	switch {
	case a == Cooperate && b == Cooperate:
		return StateCC
	case a == Cooperate:
		return StateCD
	case b == Cooperate:
		return StateDC
	default:
		return StateDD
	}
}

type JointCounts struct {
	CC int `json:"cc"`
	CD int `json:"cd"`
	DC int `json:"dc"`
	DD int `json:"dd"`
}

func (c *JointCounts) add(state int) {
	switch state {
	case StateCC:
		c.CC++
	case StateCD:
		c.CD++
	case StateDC:
		c.DC++
	default:
		c.DD++
	}
}

func (c *JointCounts) Merge(other JointCounts) {
	c.CC += other.CC
	c.CD += other.CD
	c.DC += other.DC
	c.DD += other.DD
}

func (c JointCounts) Total() int {
	return c.CC + c.CD + c.DC + c.DD
}

func (c JointCounts) Record() model.JointCounts {
	return model.JointCounts{CC: c.CC, CD: c.CD, DC: c.DC, DD: c.DD}
}

// TransitionCounts[from][to] counts consecutive joint states.
type TransitionCounts [4][4]int

func (t *TransitionCounts) Merge(other TransitionCounts) {
	for from := range t {
		for to := range t[from] {
			t[from][to] += other[from][to]
		}
	}
}

func (t TransitionCounts) Total() int {
	total := 0
	for from := range t {
		for to := range t[from] {
			total += t[from][to]
		}
	}
	return total
}

// Record flattens non-zero transitions to "CC>DD" style keys.
func (t TransitionCounts) Record() map[string]int {
	out := map[string]int{}
	for from := range t {
		for to := range t[from] {
			if t[from][to] > 0 {
				out[stateNames[from]+">"+stateNames[to]] = t[from][to]
			}
		}
	}
	return out
}

type RoundRecord struct {
	Round      int     `json:"round"`
	ChosenA    Action  `json:"chosen_a"`
	ChosenB    Action  `json:"chosen_b"`
	EffectiveA Action  `json:"effective_a"`
	EffectiveB Action  `json:"effective_b"`
	PayoffA    float64 `json:"payoff_a"`
	PayoffB    float64 `json:"payoff_b"`
}

type MatchResult struct {
	PlayerA      string           `json:"player_a"`
	PlayerB      string           `json:"player_b"`
	Rounds       []RoundRecord    `json:"rounds"`
	TotalA       float64          `json:"total_a"`
	TotalB       float64          `json:"total_b"`
	CooperationA float64          `json:"cooperation_a"`
	CooperationB float64          `json:"cooperation_b"`
	FlipsA       int              `json:"flips_a"`
	FlipsB       int              `json:"flips_b"`
	States       JointCounts      `json:"states"`
	Transitions  TransitionCounts `json:"transitions"`
}

func (r MatchResult) RoundCount() int {
	return len(r.Rounds)
}

func (r MatchResult) MeanPayoffA() float64 {
	if len(r.Rounds) == 0 {
		return 0
	}
	return r.TotalA / float64(len(r.Rounds))
}

func (r MatchResult) MeanPayoffB() float64 {
	if len(r.Rounds) == 0 {
		return 0
	}
	return r.TotalB / float64(len(r.Rounds))
}

// Record converts the result to its serializable form. Round telemetry is
// included only when withRounds is set.
func (r MatchResult) Record(withRounds bool) model.MatchRecord {
	rec := model.MatchRecord{
		VersionedRecord: model.CurrentVersion(),
		PlayerA:         r.PlayerA,
		PlayerB:         r.PlayerB,
		RoundCount:      r.RoundCount(),
		TotalPayoffA:    r.TotalA,
		TotalPayoffB:    r.TotalB,
		MeanPayoffA:     r.MeanPayoffA(),
		MeanPayoffB:     r.MeanPayoffB(),
		CooperationA:    r.CooperationA,
		CooperationB:    r.CooperationB,
		FlipsA:          r.FlipsA,
		FlipsB:          r.FlipsB,
		States:          r.States.Record(),
		Transitions:     r.Transitions.Record(),
	}
	if withRounds {
		rec.Rounds = make([]model.RoundRecord, 0, len(r.Rounds))
		for _, round := range r.Rounds {
			rec.Rounds = append(rec.Rounds, model.RoundRecord{
				Round:      round.Round,
				ChosenA:    round.ChosenA.String(),
				ChosenB:    round.ChosenB.String(),
				EffectiveA: round.EffectiveA.String(),
				EffectiveB: round.EffectiveB.String(),
				PayoffA:    round.PayoffA,
				PayoffB:    round.PayoffB,
			})
		}
	}
	return rec
}

type MatchConfig struct {
	Payoffs PayoffMatrix
	Noise   *Noise
	Horizon Horizon
}

func (c MatchConfig) Validate() error {
	if err := c.Payoffs.Validate(); err != nil {
		return err
	}
	if err := c.Noise.Validate(); err != nil {
		return err
	}
	return c.Horizon.Validate()
}

// RunMatch plays one repeated game between a and b. Noise and geometric
// continuation draws come from rng; each strategy receives its own stream
// seeded from rng before the first round.
func RunMatch(ctx context.Context, a, b Player, cfg MatchConfig, rng *rand.Rand) (MatchResult, error) {
	if err := cfg.Validate(); err != nil {
		return MatchResult{}, err
	}
	if a.Strategy == nil || b.Strategy == nil {
		return MatchResult{}, ConfigErrorf("both players require a strategy")
	}
	if rng == nil {
		return MatchResult{}, ConfigErrorf("random source is required")
	}

	rngA := rand.New(rand.NewSource(rng.Int63()))
	rngB := rand.New(rand.NewSource(rng.Int63()))
	a.Strategy.Reset()
	b.Strategy.Reset()

	result := MatchResult{PlayerA: a.Label(), PlayerB: b.Label()}
	if cfg.Horizon.Fixed() {
		result.Rounds = make([]RoundRecord, 0, cfg.Horizon.Rounds)
	}

	prevA, prevB := NoAction, NoAction
	prevState := -1
	coopA, coopB := 0, 0
	for round := 0; ; round++ {
		if round%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return MatchResult{}, err
			}
		}

		var chosenA, chosenB Action
		if round == 0 {
			chosenA = a.Strategy.FirstAction(rngA)
			chosenB = b.Strategy.FirstAction(rngB)
		} else {
			chosenA = a.Strategy.NextAction(prevA, prevB, rngA)
			chosenB = b.Strategy.NextAction(prevB, prevA, rngB)
		}
		if !chosenA.Valid() {
			return MatchResult{}, &ContractViolationError{Strategy: result.PlayerA, Side: "A", Round: round, Action: chosenA}
		}
		if !chosenB.Valid() {
			return MatchResult{}, &ContractViolationError{Strategy: result.PlayerB, Side: "B", Round: round, Action: chosenB}
		}

		effA := cfg.Noise.Apply(chosenA, rng)
		effB := cfg.Noise.Apply(chosenB, rng)
		payA, payB, err := cfg.Payoffs.Payoff(effA, effB)
		if err != nil {
			return MatchResult{}, err
		}

		result.Rounds = append(result.Rounds, RoundRecord{
			Round:      round,
			ChosenA:    chosenA,
			ChosenB:    chosenB,
			EffectiveA: effA,
			EffectiveB: effB,
			PayoffA:    payA,
			PayoffB:    payB,
		})
		result.TotalA += payA
		result.TotalB += payB
		if effA == Cooperate {
			coopA++
		}
		if effB == Cooperate {
			coopB++
		}
		if effA != chosenA {
			result.FlipsA++
		}
		if effB != chosenB {
			result.FlipsB++
		}
		state := JointState(effA, effB)
		result.States.add(state)
		if prevState >= 0 {
			result.Transitions[prevState][state]++
		}
		prevState = state
		prevA, prevB = effA, effB

		if !cfg.Horizon.continues(round+1, rng) {
			break
		}
	}

	n := float64(len(result.Rounds))
	result.CooperationA = float64(coopA) / n
	result.CooperationB = float64(coopB) / n
	return result, nil
}
