// Package config loads experiment definitions from YAML, applies environment
// overrides and maps the result onto engine configurations.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"dilemma/internal/evo"
	"dilemma/internal/game"
	"dilemma/internal/strategy"
	"dilemma/internal/tournament"
)

// StrategySpec names a catalog strategy and its constructor parameters.
// Label defaults to the instance name, e.g. "RAND(0.30)".
type StrategySpec struct {
	Label    string             `yaml:"label,omitempty"`
	Strategy string             `yaml:"strategy" validate:"required"`
	Params   map[string]float64 `yaml:"params,omitempty"`
}

type TournamentSection struct {
	Mode        string `yaml:"mode" env:"IPD_TOURNAMENT_MODE" validate:"omitempty,oneof=round_robin all_play_all double_round_robin"`
	Repetitions int    `yaml:"repetitions" env:"IPD_REPETITIONS" validate:"gte=1"`
	OnViolation string `yaml:"on_violation" env:"IPD_ON_VIOLATION" validate:"omitempty,oneof=continue abort"`
	KeepMatches bool   `yaml:"keep_matches" env:"IPD_KEEP_MATCHES"`
}

type EvolutionSection struct {
	Mode               string             `yaml:"mode" env:"IPD_POPULATION_MODE" validate:"omitempty,oneof=frequency count"`
	Size               int                `yaml:"size" env:"IPD_POPULATION_SIZE" validate:"gte=0"`
	Generations        int                `yaml:"generations" env:"IPD_GENERATIONS" validate:"gte=1"`
	Metric             string             `yaml:"metric" env:"IPD_FITNESS_METRIC" validate:"omitempty,oneof=mean_payoff median_payoff cooperation_rate"`
	MutationRate       float64            `yaml:"mutation_rate" env:"IPD_MUTATION_RATE" validate:"gte=0,lte=1"`
	MutationPolicy     string             `yaml:"mutation_policy" env:"IPD_MUTATION_POLICY" validate:"omitempty,oneof=absent_only uniform"`
	StabilityThreshold float64            `yaml:"stability_threshold" env:"IPD_STABILITY_THRESHOLD" validate:"gte=0"`
	Resample           bool               `yaml:"resample" env:"IPD_RESAMPLE"`
	Initial            map[string]float64 `yaml:"initial,omitempty"`
}

// Experiment is the full on-disk description of a run.
type Experiment struct {
	Name         string            `yaml:"name"`
	Seed         int64             `yaml:"seed" env:"IPD_SEED"`
	Workers      int               `yaml:"workers" env:"IPD_WORKERS" validate:"gte=0"`
	Payoffs      game.PayoffMatrix `yaml:"payoffs"`
	Noise        float64           `yaml:"noise" env:"IPD_NOISE" validate:"gte=0,lte=1"`
	Rounds       int               `yaml:"rounds" env:"IPD_ROUNDS" validate:"gte=0"`
	Continuation float64           `yaml:"continuation" env:"IPD_CONTINUATION" validate:"gte=0,lt=1"`
	Strategies   []StrategySpec    `yaml:"strategies" validate:"min=2,dive"`
	Tournament   TournamentSection `yaml:"tournament"`
	Evolution    EvolutionSection  `yaml:"evolution"`
}

var validate = validator.New()

// DefaultRounds is the fixed horizon used when neither rounds nor
// continuation is set.
const DefaultRounds = 200

// DefaultStrategies is the classic baseline roster.
var DefaultStrategies = []string{"ALLC", "ALLD", "TFT", "STFT", "TF2T", "GRIM", "WSLS", "GTFT", "RAND"}

func Default() Experiment {
	specs := make([]StrategySpec, 0, len(DefaultStrategies))
	for _, name := range DefaultStrategies {
		specs = append(specs, StrategySpec{Strategy: name})
	}
	return Experiment{
		Name:       "default",
		Seed:       1,
		Payoffs:    game.DefaultPayoffMatrix(),
		Strategies: specs,
		Tournament: TournamentSection{
			Repetitions: 5,
			OnViolation: string(tournament.ViolationContinue),
		},
		Evolution: EvolutionSection{
			Mode:           string(evo.FrequencyMode),
			Size:           100,
			Generations:    100,
			Metric:         "mean_payoff",
			MutationPolicy: string(evo.MutationAbsentOnly),
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path yields the defaults plus environment.
func Load(path string) (Experiment, error) {
	exp := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Experiment{}, fmt.Errorf("read config: %w", err)
		}
		if exp, err = Parse(data); err != nil {
			return Experiment{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := ParseEnv(&exp); err != nil {
		return Experiment{}, err
	}
	if err := exp.Validate(); err != nil {
		return Experiment{}, err
	}
	return exp, nil
}

// Parse decodes YAML over the defaults without validating.
func Parse(data []byte) (Experiment, error) {
	exp := Default()
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return Experiment{}, fmt.Errorf("%w: decode yaml: %v", game.ErrConfiguration, err)
	}
	return exp, nil
}

// ParseEnv loads configuration overrides from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate runs tag validation, then the engine-level checks.
func (e Experiment) Validate() error {
	if err := validate.Struct(e); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return game.ConfigErrorf("%s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", game.ErrConfiguration, err)
	}
	if e.Rounds > 0 && e.Continuation > 0 {
		return game.ConfigErrorf("set either rounds (%d) or continuation (%g), not both", e.Rounds, e.Continuation)
	}
	if err := e.MatchConfig().Validate(); err != nil {
		return err
	}
	return nil
}

// Horizon falls back to DefaultRounds when neither field is set. Validate
// rejects experiments that set both.
func (e Experiment) Horizon() game.Horizon {
	switch {
	case e.Continuation > 0:
		return game.GeometricHorizon(e.Continuation)
	case e.Rounds > 0:
		return game.FixedHorizon(e.Rounds)
	}
	return game.FixedHorizon(DefaultRounds)
}

func (e Experiment) MatchConfig() game.MatchConfig {
	cfg := game.MatchConfig{Payoffs: e.Payoffs, Horizon: e.Horizon()}
	if e.Noise > 0 {
		cfg.Noise = &game.Noise{Epsilon: e.Noise}
	}
	return cfg
}

// Entrants builds one tournament entrant per strategy spec.
func (e Experiment) Entrants() ([]tournament.Entrant, error) {
	out := make([]tournament.Entrant, 0, len(e.Strategies))
	for _, spec := range e.Strategies {
		entrant, err := NewEntrant(spec, e.Payoffs)
		if err != nil {
			return nil, err
		}
		out = append(out, entrant)
	}
	return out, nil
}

// NewEntrant resolves spec against the strategy catalog. Strategies that take
// payoff parameters get the experiment's matrix for any the spec leaves unset.
func NewEntrant(spec StrategySpec, payoffs game.PayoffMatrix) (tournament.Entrant, error) {
	params, err := withPayoffs(spec, payoffs)
	if err != nil {
		return tournament.Entrant{}, err
	}
	build, err := strategy.Constructor(spec.Strategy, params)
	if err != nil {
		return tournament.Entrant{}, err
	}
	label := spec.Label
	if label == "" {
		sample, err := build()
		if err != nil {
			return tournament.Entrant{}, err
		}
		label = sample.Name()
	}
	return tournament.Entrant{Name: label, New: build}, nil
}

func withPayoffs(spec StrategySpec, payoffs game.PayoffMatrix) (map[string]float64, error) {
	accepted, err := strategy.Params(spec.Strategy)
	if err != nil {
		return nil, err
	}
	matrix := map[string]float64{
		"reward":     payoffs.Reward,
		"sucker":     payoffs.Sucker,
		"temptation": payoffs.Temptation,
		"punishment": payoffs.Punishment,
	}
	var out map[string]float64
	for _, name := range accepted {
		v, ok := matrix[name]
		if !ok {
			continue
		}
		if _, set := spec.Params[name]; set {
			continue
		}
		if out == nil {
			out = make(map[string]float64, len(spec.Params)+len(matrix))
			for k, pv := range spec.Params {
				out[k] = pv
			}
		}
		out[name] = v
	}
	if out == nil {
		return spec.Params, nil
	}
	return out, nil
}

func (e Experiment) TournamentConfig(logger *slog.Logger) (tournament.Config, error) {
	roster, err := e.Entrants()
	if err != nil {
		return tournament.Config{}, err
	}
	mode, err := tournament.ParsePairingMode(e.Tournament.Mode)
	if err != nil {
		return tournament.Config{}, err
	}
	policy, err := tournament.ParseViolationPolicy(e.Tournament.OnViolation)
	if err != nil {
		return tournament.Config{}, err
	}
	match := e.MatchConfig()
	return tournament.Config{
		Roster:      roster,
		Payoffs:     match.Payoffs,
		Noise:       match.Noise,
		Horizon:     match.Horizon,
		Repetitions: e.Tournament.Repetitions,
		Mode:        mode,
		Seed:        e.Seed,
		Workers:     e.Workers,
		OnViolation: policy,
		KeepMatches: e.Tournament.KeepMatches,
		Logger:      logger,
	}, nil
}

func (e Experiment) MonitorConfig(logger *slog.Logger) (evo.MonitorConfig, error) {
	tcfg, err := e.TournamentConfig(logger)
	if err != nil {
		return evo.MonitorConfig{}, err
	}
	// An unset mode means round_robin for tournaments but all_play_all here.
	if e.Tournament.Mode == "" {
		tcfg.Mode = tournament.AllPlayAll
	}
	metric, err := evo.FitnessMetricByName(e.Evolution.Metric)
	if err != nil {
		return evo.MonitorConfig{}, err
	}
	policy, err := evo.ParseMutationPolicy(e.Evolution.MutationPolicy)
	if err != nil {
		return evo.MonitorConfig{}, err
	}
	return evo.MonitorConfig{
		Tournament:         tcfg,
		Metric:             metric,
		MutationRate:       e.Evolution.MutationRate,
		Mutation:           policy,
		Generations:        e.Evolution.Generations,
		StabilityThreshold: e.Evolution.StabilityThreshold,
		Resample:           e.Evolution.Resample,
		Seed:               e.Seed,
		Logger:             logger,
	}, nil
}

// InitialPopulation builds the starting population over catalog. Without an
// explicit initial mix every catalog strategy starts with an equal share;
// count mode splits Size as evenly as possible, extra heads going to the
// first names.
func (e Experiment) InitialPopulation(catalog []string) (evo.Population, error) {
	mode, err := evo.ParseMode(e.Evolution.Mode)
	if err != nil {
		return evo.Population{}, err
	}
	initial := e.Evolution.Initial
	if mode == evo.FrequencyMode {
		if len(initial) == 0 {
			return evo.UniformPopulation(catalog)
		}
		return evo.NewFrequencyPopulation(initial)
	}

	counts := make(map[string]int, len(catalog))
	if len(initial) == 0 {
		if e.Evolution.Size < len(catalog) {
			return evo.Population{}, game.ConfigErrorf("population size %d is smaller than the catalog (%d)", e.Evolution.Size, len(catalog))
		}
		base, extra := e.Evolution.Size/len(catalog), e.Evolution.Size%len(catalog)
		for i, name := range catalog {
			counts[name] = base
			if i < extra {
				counts[name]++
			}
		}
		return evo.NewCountPopulation(counts)
	}
	names := make([]string, 0, len(initial))
	for name := range initial {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := initial[name]
		if v != float64(int(v)) {
			return evo.Population{}, game.ConfigErrorf("count for %s must be an integer, got %g", name, v)
		}
		counts[name] = int(v)
	}
	return evo.NewCountPopulation(counts)
}
