package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dilemma/internal/evo"
	"dilemma/internal/game"
	"dilemma/internal/strategy"
	"dilemma/internal/tournament"
)

func TestDefaultIsValid(t *testing.T) {
	exp := Default()
	require.NoError(t, exp.Validate())
	assert.Equal(t, game.FixedHorizon(200), exp.Horizon())
	assert.Nil(t, exp.MatchConfig().Noise)

	roster, err := exp.Entrants()
	require.NoError(t, err)
	assert.Len(t, roster, len(DefaultStrategies))
	assert.Equal(t, "GTFT(0.10)", roster[7].Name)
}

func TestLoadYAML(t *testing.T) {
	exp, err := Load("testdata/evolution.yaml")
	require.NoError(t, err)

	assert.Equal(t, "noisy-evolution", exp.Name)
	assert.Equal(t, int64(17), exp.Seed)
	assert.Equal(t, game.GeometricHorizon(0.95), exp.Horizon())
	assert.Equal(t, 6.0, exp.Payoffs.Temptation)
	assert.Equal(t, 3.0, exp.Payoffs.Reward, "unset payoffs keep their defaults")

	tcfg, err := exp.TournamentConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, tournament.AllPlayAll, tcfg.Mode)
	assert.Equal(t, tournament.ViolationAbort, tcfg.OnViolation)
	assert.Equal(t, 3, tcfg.Repetitions)
	require.NotNil(t, tcfg.Noise)
	assert.Equal(t, 0.02, tcfg.Noise.Epsilon)

	names := make([]string, 0, len(tcfg.Roster))
	for _, entrant := range tcfg.Roster {
		names = append(names, entrant.Name)
	}
	assert.Equal(t, []string{"TFT", "ALLD", "RAND(0.30)", "generous"}, names)

	mcfg, err := exp.MonitorConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "median_payoff", mcfg.Metric.Name())
	assert.Equal(t, evo.MutationUniform, mcfg.Mutation)
	assert.Equal(t, 40, mcfg.Generations)

	pop, err := exp.InitialPopulation(names)
	require.NoError(t, err)
	assert.Equal(t, evo.CountMode, pop.Mode)
	assert.Equal(t, 60.0, pop.Total)
	assert.NoError(t, pop.Validate(names))
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	_, err := Load("testdata/invalid.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrConfiguration)
	assert.Contains(t, err.Error(), "Strategies")
	assert.Contains(t, err.Error(), "Mode")
	assert.Contains(t, err.Error(), "MutationRate")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("strategies: [unclosed"))
	assert.ErrorIs(t, err, game.ErrConfiguration)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("IPD_SEED", "99")
	t.Setenv("IPD_NOISE", "0.1")
	t.Setenv("IPD_TOURNAMENT_MODE", "double_round_robin")
	t.Setenv("IPD_GENERATIONS", "7")
	t.Setenv("IPD_MUTATION_RATE", "0.05")

	exp, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(99), exp.Seed)
	assert.Equal(t, 0.1, exp.Noise)
	assert.Equal(t, "double_round_robin", exp.Tournament.Mode)
	assert.Equal(t, 7, exp.Evolution.Generations)
	assert.Equal(t, 0.05, exp.Evolution.MutationRate)
}

func TestEnvironmentOverrideParseError(t *testing.T) {
	t.Setenv("IPD_SEED", "not-a-number")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestValidateCatchesEngineRules(t *testing.T) {
	exp := Default()
	exp.Payoffs = game.PayoffMatrix{Reward: 5, Sucker: 0, Temptation: 3, Punishment: 1}
	assert.ErrorIs(t, exp.Validate(), game.ErrConfiguration)

	exp = Default()
	exp.Rounds = -1
	assert.ErrorIs(t, exp.Validate(), game.ErrConfiguration)
}

func TestValidateRejectsAmbiguousHorizon(t *testing.T) {
	exp, err := Parse([]byte("rounds: 50\ncontinuation: 0.9\n"))
	require.NoError(t, err)
	err = exp.Validate()
	require.ErrorIs(t, err, game.ErrConfiguration)
	assert.Contains(t, err.Error(), "not both")

	t.Setenv("IPD_CONTINUATION", "0.9")
	_, err = Load("testdata/fixed_rounds.yaml")
	assert.ErrorIs(t, err, game.ErrConfiguration)
}

func TestHorizonFromSingleField(t *testing.T) {
	exp, err := Parse([]byte("rounds: 50\n"))
	require.NoError(t, err)
	require.NoError(t, exp.Validate())
	assert.Equal(t, game.FixedHorizon(50), exp.Horizon())

	exp, err = Parse([]byte("continuation: 0.9\n"))
	require.NoError(t, err)
	require.NoError(t, exp.Validate())
	assert.Equal(t, game.GeometricHorizon(0.9), exp.Horizon())
}

func TestMonitorConfigPairingMode(t *testing.T) {
	exp := Default()
	tcfg, err := exp.TournamentConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, tournament.RoundRobin, tcfg.Mode)

	mcfg, err := exp.MonitorConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, tournament.AllPlayAll, mcfg.Tournament.Mode)
	_, err = evo.NewPopulationMonitor(mcfg)
	require.NoError(t, err)

	exp.Tournament.Mode = string(tournament.DoubleRoundRobin)
	mcfg, err = exp.MonitorConfig(nil)
	require.NoError(t, err)
	_, err = evo.NewPopulationMonitor(mcfg)
	assert.ErrorIs(t, err, game.ErrConfiguration)
}

func TestEntrantsCarryExperimentPayoffs(t *testing.T) {
	exp := Default()
	exp.Payoffs = game.PayoffMatrix{Reward: 4, Sucker: -1, Temptation: 7, Punishment: 1}
	exp.Strategies = []StrategySpec{{Strategy: "ZDX"}, {Strategy: "TFT"}}

	roster, err := exp.Entrants()
	require.NoError(t, err)
	got, err := roster[0].New()
	require.NoError(t, err)
	want, err := strategy.NewZDExtortion(3, 0.5, exp.Payoffs)
	require.NoError(t, err)
	assert.Equal(t, want.Probs, got.(*strategy.MemoryOne).Probs)

	explicit, err := NewEntrant(StrategySpec{Strategy: "ZDX", Params: map[string]float64{"temptation": 5, "reward": 3, "sucker": 0, "punishment": 1}}, exp.Payoffs)
	require.NoError(t, err)
	got, err = explicit.New()
	require.NoError(t, err)
	want, err = strategy.NewZDExtortion(3, 0.5, game.DefaultPayoffMatrix())
	require.NoError(t, err)
	assert.Equal(t, want.Probs, got.(*strategy.MemoryOne).Probs)
}

func TestEntrantsRejectUnknownStrategy(t *testing.T) {
	exp := Default()
	exp.Strategies = append(exp.Strategies, StrategySpec{Strategy: "NOPE"})
	_, err := exp.Entrants()
	assert.Error(t, err)
}

func TestInitialPopulationDefaults(t *testing.T) {
	catalog := []string{"A", "B", "C"}

	exp := Default()
	pop, err := exp.InitialPopulation(catalog)
	require.NoError(t, err)
	assert.Equal(t, evo.FrequencyMode, pop.Mode)
	assert.InDelta(t, 1.0/3, pop.Shares["B"], 1e-12)

	exp.Evolution.Mode = "count"
	exp.Evolution.Size = 10
	pop, err = exp.InitialPopulation(catalog)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"A": 4, "B": 3, "C": 3}, pop.Shares)

	exp.Evolution.Size = 2
	_, err = exp.InitialPopulation(catalog)
	assert.ErrorIs(t, err, game.ErrConfiguration)

	exp.Evolution.Initial = map[string]float64{"A": 1.5}
	_, err = exp.InitialPopulation(catalog)
	assert.ErrorIs(t, err, game.ErrConfiguration)
}
