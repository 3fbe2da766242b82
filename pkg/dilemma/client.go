// Package dilemma is the programmatic entry point for running Iterated
// Prisoner's Dilemma matches, tournaments and evolutionary simulations.
package dilemma

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dilemma/internal/config"
	"dilemma/internal/logging"
	"dilemma/internal/model"
	"dilemma/internal/platform"
	"dilemma/internal/storage"
	"dilemma/internal/strategy"
)

const defaultDBPath = "dilemma.db"

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind string
	DBPath    string
	// ArtifactsDir receives JSON/CSV artifacts per run. Empty disables them.
	ArtifactsDir string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	arena  *platform.Arena
	logger *slog.Logger
}

type StrategyInfo struct {
	Name   string   `json:"name"`
	Params []string `json:"params,omitempty"`
}

type TournamentRequest struct {
	Experiment config.Experiment
	RunID      string
}

type TournamentSummary struct {
	RunID           string                 `json:"run_id"`
	ArtifactsDir    string                 `json:"artifacts_dir,omitempty"`
	Mode            string                 `json:"mode"`
	Matches         int                    `json:"matches"`
	Rounds          int                    `json:"rounds"`
	MeanPayoff      float64                `json:"mean_payoff"`
	CooperationRate float64                `json:"cooperation_rate"`
	Standings       []model.StandingRecord `json:"standings"`
	Failures        []model.FailureRecord  `json:"failures,omitempty"`
}

type EvolveRequest struct {
	Experiment config.Experiment
	RunID      string
}

type EvolutionSummary struct {
	RunID         string             `json:"run_id"`
	ArtifactsDir  string             `json:"artifacts_dir,omitempty"`
	Mode          string             `json:"mode"`
	Generations   int                `json:"generations"`
	Converged     bool               `json:"converged"`
	StopReason    string             `json:"stop_reason"`
	Dominant      string             `json:"dominant"`
	DominantShare float64            `json:"dominant_share"`
	Final         map[string]float64 `json:"final"`
}

// MatchRequest plays A against B under the experiment's match rules. Empty
// specs fall back to the first two experiment strategies.
type MatchRequest struct {
	Experiment config.Experiment
	A          config.StrategySpec
	B          config.StrategySpec
	RunID      string
}

type MatchSummary struct {
	RunID        string            `json:"run_id"`
	ArtifactsDir string            `json:"artifacts_dir,omitempty"`
	Record       model.MatchRecord `json:"match"`
}

type RunsRequest struct {
	Limit int
	Kind  string
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type RunDetail struct {
	Summary    model.RunSummary        `json:"summary"`
	Tournament *model.TournamentRecord `json:"tournament,omitempty"`
	Trajectory *model.TrajectoryRecord `json:"trajectory,omitempty"`
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:  store,
		logger: logger,
		arena: platform.NewArena(platform.Config{
			Store:        store,
			ArtifactsDir: opts.ArtifactsDir,
			Logger:       logger,
		}),
	}, nil
}

func (c *Client) Close() error {
	if c.arena.Started() {
		return c.arena.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.arena.Init(ctx)
}

// Strategies lists the catalog with each strategy's parameter names.
func (c *Client) Strategies() ([]StrategyInfo, error) {
	names := strategy.Names()
	out := make([]StrategyInfo, 0, len(names))
	for _, name := range names {
		params, err := strategy.Params(name)
		if err != nil {
			return nil, err
		}
		out = append(out, StrategyInfo{Name: name, Params: params})
	}
	return out, nil
}

func (c *Client) Tournament(ctx context.Context, req TournamentRequest) (TournamentSummary, error) {
	if err := c.Init(ctx); err != nil {
		return TournamentSummary{}, err
	}
	if err := req.Experiment.Validate(); err != nil {
		return TournamentSummary{}, err
	}
	tcfg, err := req.Experiment.TournamentConfig(c.logger)
	if err != nil {
		return TournamentSummary{}, err
	}

	run, err := c.arena.RunTournament(ctx, tcfg, platform.RunOptions{RunID: req.RunID})
	if err != nil {
		return TournamentSummary{}, err
	}
	overall := run.Result.Summary()
	return TournamentSummary{
		RunID:           run.RunID,
		ArtifactsDir:    run.ArtifactsDir,
		Mode:            run.Record.Mode,
		Matches:         overall.Matches,
		Rounds:          overall.Rounds,
		MeanPayoff:      overall.MeanPayoff,
		CooperationRate: overall.CooperationRate,
		Standings:       run.Record.Standings,
		Failures:        run.Record.Failures,
	}, nil
}

func (c *Client) Evolve(ctx context.Context, req EvolveRequest) (EvolutionSummary, error) {
	if err := c.Init(ctx); err != nil {
		return EvolutionSummary{}, err
	}
	if err := req.Experiment.Validate(); err != nil {
		return EvolutionSummary{}, err
	}
	mcfg, err := req.Experiment.MonitorConfig(c.logger)
	if err != nil {
		return EvolutionSummary{}, err
	}
	catalog := make([]string, 0, len(mcfg.Tournament.Roster))
	for _, entrant := range mcfg.Tournament.Roster {
		catalog = append(catalog, entrant.Name)
	}
	initial, err := req.Experiment.InitialPopulation(catalog)
	if err != nil {
		return EvolutionSummary{}, err
	}

	run, err := c.arena.RunEvolution(ctx, mcfg, initial, platform.RunOptions{RunID: req.RunID})
	if err != nil {
		return EvolutionSummary{}, err
	}
	final := run.Result.Final()
	return EvolutionSummary{
		RunID:         run.RunID,
		ArtifactsDir:  run.ArtifactsDir,
		Mode:          string(final.Mode),
		Generations:   run.Summary.Generations,
		Converged:     run.Result.Converged,
		StopReason:    string(run.Result.StopReason),
		Dominant:      run.Summary.Leader,
		DominantShare: run.Summary.LeaderScore,
		Final:         final.Clone().Shares,
	}, nil
}

func (c *Client) Match(ctx context.Context, req MatchRequest) (MatchSummary, error) {
	if err := c.Init(ctx); err != nil {
		return MatchSummary{}, err
	}
	if err := req.Experiment.Validate(); err != nil {
		return MatchSummary{}, err
	}
	specA, specB := req.A, req.B
	if specA.Strategy == "" || specB.Strategy == "" {
		if len(req.Experiment.Strategies) < 2 {
			return MatchSummary{}, fmt.Errorf("match requires two strategies")
		}
		if specA.Strategy == "" {
			specA = req.Experiment.Strategies[0]
		}
		if specB.Strategy == "" {
			specB = req.Experiment.Strategies[1]
		}
	}
	left, err := config.NewEntrant(specA, req.Experiment.Payoffs)
	if err != nil {
		return MatchSummary{}, err
	}
	right, err := config.NewEntrant(specB, req.Experiment.Payoffs)
	if err != nil {
		return MatchSummary{}, err
	}

	run, err := c.arena.RunMatch(ctx, left, right, req.Experiment.MatchConfig(), req.Experiment.Seed, platform.RunOptions{RunID: req.RunID})
	if err != nil {
		return MatchSummary{}, err
	}
	return MatchSummary{RunID: run.RunID, ArtifactsDir: run.ArtifactsDir, Record: run.Record}, nil
}

// Runs lists stored runs newest first, optionally filtered by kind.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]model.RunSummary, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.RunSummary, 0, len(runs))
	for _, run := range runs {
		if req.Kind != "" && run.Kind != req.Kind {
			continue
		}
		out = append(out, run)
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// Show loads a stored run with its tournament or trajectory record.
func (c *Client) Show(ctx context.Context, req ShowRequest) (RunDetail, error) {
	if req.RunID != "" && req.Latest {
		return RunDetail{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return RunDetail{}, errors.New("show requires run id or latest")
	}
	if err := c.Init(ctx); err != nil {
		return RunDetail{}, err
	}

	runID := req.RunID
	if req.Latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return RunDetail{}, err
		}
		if len(runs) == 0 {
			return RunDetail{}, fmt.Errorf("%w: no runs available", ErrRunNotFound)
		}
		runID = runs[0].RunID
	}

	summary, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	detail := RunDetail{Summary: summary}
	switch summary.Kind {
	case platform.KindTournament:
		record, ok, err := c.store.GetTournament(ctx, runID)
		if err != nil {
			return RunDetail{}, err
		}
		if ok {
			detail.Tournament = &record
		}
	case platform.KindEvolution:
		record, ok, err := c.store.GetTrajectory(ctx, runID)
		if err != nil {
			return RunDetail{}, err
		}
		if ok {
			detail.Trajectory = &record
		}
	}
	return detail, nil
}
