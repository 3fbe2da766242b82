package evo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"dilemma/internal/game"
	"dilemma/internal/strategy"
	"dilemma/internal/tournament"
)

func catalogTournament(t *testing.T, names ...string) tournament.Config {
	t.Helper()
	roster := make([]tournament.Entrant, 0, len(names))
	for _, name := range names {
		build, err := strategy.Constructor(name, nil)
		if err != nil {
			t.Fatalf("constructor %s: %v", name, err)
		}
		roster = append(roster, tournament.Entrant{Name: name, New: build})
	}
	return tournament.Config{
		Roster:      roster,
		Payoffs:     game.DefaultPayoffMatrix(),
		Horizon:     game.FixedHorizon(10),
		Repetitions: 1,
		Workers:     4,
		Seed:        1,
	}
}

func newMonitor(t *testing.T, cfg MonitorConfig) *PopulationMonitor {
	t.Helper()
	if cfg.Metric == nil {
		cfg.Metric = MeanPayoffMetric{}
	}
	m, err := NewPopulationMonitor(cfg)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return m
}

func TestSharesSumToTotalEveryGeneration(t *testing.T) {
	tcfg := catalogTournament(t, "TFT", "ALLD", "ALLC", "GTFT", "RAND")
	tcfg.Noise = &game.Noise{Epsilon: 0.02}
	m := newMonitor(t, MonitorConfig{
		Tournament:   tcfg,
		MutationRate: 0.01,
		Mutation:     MutationUniform,
		Generations:  40,
		Seed:         7,
	})
	initial, err := UniformPopulation(m.Catalog())
	if err != nil {
		t.Fatalf("uniform population: %v", err)
	}
	res, err := m.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Snapshots) != 41 {
		t.Fatalf("snapshots = %d, want 41", len(res.Snapshots))
	}
	for _, snap := range res.Snapshots {
		if sum := snap.Population.Sum(); math.Abs(sum-1) > Tolerance {
			t.Fatalf("generation %d shares sum to %.15f", snap.Generation, sum)
		}
		for name, share := range snap.Population.Shares {
			if share < 0 {
				t.Fatalf("generation %d: %s has negative share %g", snap.Generation, name, share)
			}
		}
	}
	if res.Snapshots[40].Fitness != nil {
		t.Fatalf("last snapshot should not carry fitness")
	}
	if res.Converged || res.StopReason != StopGenerations {
		t.Fatalf("unexpected stop: converged=%v reason=%s", res.Converged, res.StopReason)
	}
}

func TestReplicatorMonotonicityWithoutMutation(t *testing.T) {
	m := newMonitor(t, MonitorConfig{
		Tournament:  catalogTournament(t, "TFT", "ALLD", "ALLC", "GRIM", "STFT"),
		Generations: 25,
	})
	initial, err := UniformPopulation(m.Catalog())
	if err != nil {
		t.Fatalf("uniform population: %v", err)
	}
	res, err := m.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for g := 0; g+1 < len(res.Snapshots); g++ {
		cur, next := res.Snapshots[g], res.Snapshots[g+1]
		for name, f := range cur.Fitness {
			before, after := cur.Population.Shares[name], next.Population.Shares[name]
			if before == 0 {
				if after != 0 {
					t.Fatalf("generation %d: extinct %s reappeared", g, name)
				}
				continue
			}
			switch {
			case f > cur.MeanFitness+1e-9 && !(after > before):
				t.Fatalf("generation %d: %s fitness %g above mean %g but share %g -> %g", g, name, f, cur.MeanFitness, before, after)
			case f < cur.MeanFitness-1e-9 && !(after < before):
				t.Fatalf("generation %d: %s fitness %g below mean %g but share %g -> %g", g, name, f, cur.MeanFitness, before, after)
			}
		}
	}
}

func TestDefectorsInvadeUnconditionalCooperators(t *testing.T) {
	m := newMonitor(t, MonitorConfig{
		Tournament:  catalogTournament(t, "ALLC", "ALLD"),
		Generations: 10,
	})
	initial, err := NewFrequencyPopulation(map[string]float64{"ALLC": 1, "ALLD": 1})
	if err != nil {
		t.Fatalf("population: %v", err)
	}
	res, err := m.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f := res.Snapshots[0].Fitness; f["ALLC"] != 1.5 || f["ALLD"] != 3 {
		t.Fatalf("initial fitness = %v, want ALLC 1.5 ALLD 3", f)
	}
	prev := 0.5
	for _, snap := range res.Snapshots[1:] {
		share := snap.Population.Frequency("ALLD")
		if share < prev || (prev < 1 && !(share > prev)) {
			t.Fatalf("generation %d: ALLD share %g did not grow from %g", snap.Generation, share, prev)
		}
		prev = share
	}
	if prev < 0.99 {
		t.Fatalf("final ALLD share = %g, want near fixation", prev)
	}
	if leader, _ := res.Final().Dominant(); leader != "ALLD" {
		t.Fatalf("final leader = %s, want ALLD", leader)
	}
}

func TestStabilityThresholdStopsEarly(t *testing.T) {
	m := newMonitor(t, MonitorConfig{
		Tournament:         catalogTournament(t, "TFT", "ALLC", "ALLD"),
		Generations:        50,
		StabilityThreshold: 1e-6,
	})
	initial, err := NewFrequencyPopulation(map[string]float64{"TFT": 0.5, "ALLC": 0.5})
	if err != nil {
		t.Fatalf("population: %v", err)
	}
	res, err := m.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Converged || res.StopReason != StopStable {
		t.Fatalf("expected stable stop, got converged=%v reason=%s", res.Converged, res.StopReason)
	}
	if len(res.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(res.Snapshots))
	}
	if got := res.Final().Shares["ALLD"]; got != 0 {
		t.Fatalf("absent ALLD gained share %g", got)
	}
}

func TestCountModeStaysIntegral(t *testing.T) {
	cfg := MonitorConfig{
		Tournament:   catalogTournament(t, "TFT", "ALLD", "ALLC", "WSLS"),
		MutationRate: 0.05,
		Mutation:     MutationUniform,
		Generations:  15,
		Seed:         99,
	}
	initial, err := NewCountPopulation(map[string]int{"TFT": 20, "ALLD": 10, "ALLC": 30})
	if err != nil {
		t.Fatalf("population: %v", err)
	}

	run := func() RunResult {
		res, err := newMonitor(t, cfg).Run(context.Background(), initial)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return res
	}
	first := run()
	for _, snap := range first.Snapshots {
		if err := snap.Population.Validate([]string{"TFT", "ALLD", "ALLC", "WSLS"}); err != nil {
			t.Fatalf("generation %d: %v", snap.Generation, err)
		}
		if snap.Population.Sum() != 60 {
			t.Fatalf("generation %d: total %g, want 60", snap.Generation, snap.Population.Sum())
		}
	}
	if !reflect.DeepEqual(first, run()) {
		t.Fatalf("count mode runs with the same seed differ")
	}
}

func TestResampledRunsAreReproducible(t *testing.T) {
	tcfg := catalogTournament(t, "TFT", "RAND", "GTFT")
	tcfg.Noise = &game.Noise{Epsilon: 0.1}
	tcfg.Horizon = game.GeometricHorizon(0.9)
	tcfg.Repetitions = 3
	cfg := MonitorConfig{
		Tournament:  tcfg,
		Metric:      MedianPayoffMetric{},
		Generations: 5,
		Resample:    true,
		Seed:        2024,
	}
	initial, err := UniformPopulation([]string{"TFT", "RAND", "GTFT"})
	if err != nil {
		t.Fatalf("population: %v", err)
	}
	a, err := newMonitor(t, cfg).Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("run a: %v", err)
	}
	b, err := newMonitor(t, cfg).Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("run b: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("resampled runs differ")
	}
	if reflect.DeepEqual(a.Snapshots[0].Fitness, a.Snapshots[1].Fitness) {
		t.Fatalf("resampled fitness did not change between generations")
	}
}

type brokenStrategy struct{}

func (brokenStrategy) Name() string                       { return "BROKEN" }
func (brokenStrategy) Reset()                             {}
func (brokenStrategy) FirstAction(*rand.Rand) game.Action { return game.Action('x') }
func (brokenStrategy) NextAction(_, _ game.Action, _ *rand.Rand) game.Action {
	return game.Action('x')
}

func TestTournamentFailuresAbortEvolution(t *testing.T) {
	tcfg := catalogTournament(t, "TFT", "ALLD")
	tcfg.Roster = append(tcfg.Roster, tournament.Entrant{
		Name: "BROKEN",
		New:  func() (game.Strategy, error) { return brokenStrategy{}, nil },
	})
	m := newMonitor(t, MonitorConfig{Tournament: tcfg, Generations: 3})
	initial, err := UniformPopulation([]string{"TFT", "ALLD"})
	if err != nil {
		t.Fatalf("population: %v", err)
	}
	_, err = m.Run(context.Background(), initial)
	if !errors.Is(err, game.ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
	if !strings.Contains(err.Error(), "generation 1") {
		t.Fatalf("error does not name the generation: %v", err)
	}
}

func TestMonitorConfigValidation(t *testing.T) {
	base := func() MonitorConfig {
		return MonitorConfig{
			Tournament:  catalogTournament(t, "TFT", "ALLD"),
			Metric:      MeanPayoffMetric{},
			Generations: 5,
		}
	}
	cases := map[string]func(*MonitorConfig){
		"nil metric":         func(c *MonitorConfig) { c.Metric = nil },
		"negative mutation":  func(c *MonitorConfig) { c.MutationRate = -0.1 },
		"mutation above one": func(c *MonitorConfig) { c.MutationRate = 1.5 },
		"zero generations":   func(c *MonitorConfig) { c.Generations = 0 },
		"negative threshold": func(c *MonitorConfig) { c.StabilityThreshold = -1 },
		"unknown policy":     func(c *MonitorConfig) { c.Mutation = "everywhere" },
		"invalid tournament": func(c *MonitorConfig) { c.Tournament.Repetitions = 0 },
		"single entrant":     func(c *MonitorConfig) { c.Tournament.Roster = c.Tournament.Roster[:1] },
		"round robin":        func(c *MonitorConfig) { c.Tournament.Mode = tournament.RoundRobin },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(&cfg)
		if _, err := NewPopulationMonitor(cfg); !errors.Is(err, game.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}
}

func TestInitialPopulationValidation(t *testing.T) {
	m := newMonitor(t, MonitorConfig{Tournament: catalogTournament(t, "TFT", "ALLD"), Generations: 1})
	cases := map[string]Population{
		"unknown strategy": {Mode: FrequencyMode, Total: 1, Shares: map[string]float64{"TFT": 0.5, "GRIM": 0.5}},
		"negative share":   {Mode: FrequencyMode, Total: 1, Shares: map[string]float64{"TFT": 1.5, "ALLD": -0.5}},
		"bad sum":          {Mode: FrequencyMode, Total: 1, Shares: map[string]float64{"TFT": 0.5, "ALLD": 0.4}},
		"zero total":       {Mode: CountMode, Total: 0, Shares: map[string]float64{"TFT": 0}},
		"fractional count": {Mode: CountMode, Total: 3, Shares: map[string]float64{"TFT": 1.5, "ALLD": 1.5}},
		"unknown mode":     {Mode: "ratio", Total: 1, Shares: map[string]float64{"TFT": 1}},
	}
	for name, pop := range cases {
		if _, err := m.Run(context.Background(), pop); !errors.Is(err, game.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", name, err)
		}
	}

	if _, err := NewFrequencyPopulation(map[string]float64{"TFT": 0}); !errors.Is(err, game.ErrConfiguration) {
		t.Fatalf("expected zero-total frequency population to fail, got %v", err)
	}
	if _, err := NewCountPopulation(map[string]int{"TFT": -1}); !errors.Is(err, game.ErrConfiguration) {
		t.Fatalf("expected negative count to fail, got %v", err)
	}
}

func TestRunRecord(t *testing.T) {
	m := newMonitor(t, MonitorConfig{
		Tournament:   catalogTournament(t, "TFT", "ALLD"),
		MutationRate: 0.01,
		Generations:  3,
		Seed:         5,
	})
	initial, err := NewFrequencyPopulation(map[string]float64{"TFT": 1})
	if err != nil {
		t.Fatalf("population: %v", err)
	}
	res, err := m.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rec := res.Record("run-x")
	if rec.RunID != "run-x" || rec.Metric != "mean_payoff" || rec.MutationPolicy != "absent_only" {
		t.Fatalf("record header = %+v", rec)
	}
	if len(rec.Generations) != 4 || rec.Generations[0].Fitness == nil || rec.Generations[3].Fitness != nil {
		t.Fatalf("record generations = %+v", rec.Generations)
	}
	if rec.Generations[1].Mutants == 0 {
		t.Fatalf("absent ALLD should receive mutants on the first update")
	}
	if rec.Generations[2].Mutants != 0 {
		t.Fatalf("absent_only mutation should stop once the catalog is present")
	}
}
