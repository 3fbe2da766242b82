package game

import "math"

// PayoffMatrix holds the symmetric stage-game payoffs keyed by joint action.
type PayoffMatrix struct {
	Reward     float64 `json:"reward" yaml:"reward"`
	Sucker     float64 `json:"sucker" yaml:"sucker"`
	Temptation float64 `json:"temptation" yaml:"temptation"`
	Punishment float64 `json:"punishment" yaml:"punishment"`
}

func DefaultPayoffMatrix() PayoffMatrix {
	return PayoffMatrix{Reward: 3, Sucker: 0, Temptation: 5, Punishment: 1}
}

func NewPayoffMatrix(reward, sucker, temptation, punishment float64) (PayoffMatrix, error) {
	m := PayoffMatrix{Reward: reward, Sucker: sucker, Temptation: temptation, Punishment: punishment}
	if err := m.Validate(); err != nil {
		return PayoffMatrix{}, err
	}
	return m, nil
}

// Validate enforces T > R > P > S.
func (m PayoffMatrix) Validate() error {
	for _, v := range []float64{m.Reward, m.Sucker, m.Temptation, m.Punishment} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ConfigErrorf("payoff values must be finite: %+v", m)
		}
	}
	if !(m.Temptation > m.Reward && m.Reward > m.Punishment && m.Punishment > m.Sucker) {
		return ConfigErrorf("payoffs must satisfy T > R > P > S, got T=%g R=%g P=%g S=%g",
			m.Temptation, m.Reward, m.Punishment, m.Sucker)
	}
	return nil
}

// Payoff returns the payoffs awarded to the row and column player.
func (m PayoffMatrix) Payoff(a, b Action) (float64, float64, error) {
	if !a.Valid() || !b.Valid() {
		return 0, 0, ConfigErrorf("payoff requested for %s/%s", a, b)
	}
	switch {
	case a == Cooperate && b == Cooperate:
		return m.Reward, m.Reward, nil
	case a == Cooperate && b == Defect:
		return m.Sucker, m.Temptation, nil
	case a == Defect && b == Cooperate:
		return m.Temptation, m.Sucker, nil
	default:
		return m.Punishment, m.Punishment, nil
	}
}
