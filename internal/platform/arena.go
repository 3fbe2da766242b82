// Package platform hosts the Arena, which assigns run ids, drives
// tournaments, evolutions and single matches, and persists their records.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dilemma/internal/evo"
	"dilemma/internal/game"
	"dilemma/internal/logging"
	"dilemma/internal/model"
	"dilemma/internal/rng"
	"dilemma/internal/stats"
	"dilemma/internal/storage"
	"dilemma/internal/tournament"
)

const (
	KindTournament = "tournament"
	KindEvolution  = "evolution"
	KindMatch      = "match"
)

var (
	ErrNotStarted    = errors.New("arena is not initialized")
	ErrRunNotActive  = errors.New("run not active")
	ErrDuplicateRun  = errors.New("run already active")
	ErrRunIDRequired = errors.New("run id is required")
)

type Config struct {
	Store storage.Store
	// ArtifactsDir, when set, receives JSON and CSV artifacts plus a run
	// index for every completed run.
	ArtifactsDir string
	Logger       *slog.Logger
	Now          func() time.Time
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// RunOptions controls identity of a single run. An empty RunID gets a
// fresh uuid.
type RunOptions struct {
	RunID string
}

type TournamentRun struct {
	RunID        string
	Result       tournament.Result
	Record       model.TournamentRecord
	Summary      model.RunSummary
	ArtifactsDir string
}

type EvolutionRun struct {
	RunID        string
	Result       evo.RunResult
	Record       model.TrajectoryRecord
	Summary      model.RunSummary
	ArtifactsDir string
}

type MatchRun struct {
	RunID        string
	Result       game.MatchResult
	Record       model.MatchRecord
	Summary      model.RunSummary
	ArtifactsDir string
}

type Arena struct {
	store        storage.Store
	artifactsDir string
	logger       *slog.Logger
	now          func() time.Time

	mu             sync.RWMutex
	started        bool
	lastStopReason StopReason
	runs           map[string]context.CancelFunc
}

func NewArena(cfg Config) *Arena {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Arena{
		store:          cfg.Store,
		artifactsDir:   cfg.ArtifactsDir,
		logger:         logger,
		now:            now,
		runs:           make(map[string]context.CancelFunc),
		lastStopReason: StopReasonNormal,
	}
}

func (a *Arena) Init(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("store is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	if err := a.store.Init(ctx); err != nil {
		return err
	}
	a.started = true
	return nil
}

func (a *Arena) Started() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

func (a *Arena) LastStopReason() StopReason {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastStopReason
}

func (a *Arena) Store() storage.Store {
	return a.store
}

func (a *Arena) Stop() error {
	return a.StopWithReason(StopReasonNormal)
}

// StopWithReason cancels every active run and closes the store when it
// supports closing.
func (a *Arena) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if reason != StopReasonNormal && reason != StopReasonShutdown {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, cancel := range a.runs {
		cancel()
	}
	a.runs = make(map[string]context.CancelFunc)
	wasStarted := a.started
	a.started = false
	a.lastStopReason = reason
	if !wasStarted {
		return nil
	}
	return storage.CloseIfSupported(a.store)
}

// StopRun cancels an active run. The run returns context.Canceled and
// nothing is persisted for it.
func (a *Arena) StopRun(runID string) error {
	if runID == "" {
		return ErrRunIDRequired
	}
	a.mu.RLock()
	cancel, ok := a.runs[runID]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	cancel()
	return nil
}

// ActiveRuns lists the ids of runs in progress.
func (a *Arena) ActiveRuns() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.runs))
	for id := range a.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (a *Arena) RunTournament(ctx context.Context, cfg tournament.Config, opts RunOptions) (TournamentRun, error) {
	runID, ctx, done, err := a.begin(ctx, opts)
	if err != nil {
		return TournamentRun{}, err
	}
	defer done()

	if cfg.Logger == nil {
		cfg.Logger = a.logger
	}
	result, err := tournament.Run(ctx, cfg)
	if err != nil {
		return TournamentRun{}, fmt.Errorf("tournament %s: %w", runID, err)
	}

	record := result.Record(runID)
	summary := a.summary(runID, KindTournament, result.Seed, result.Entrants)
	if len(result.Standings) > 0 {
		summary.Leader = result.Standings[0].Name
		summary.LeaderScore = result.Standings[0].MeanPayoff
	}
	summary.Failures = len(result.Failures)

	if err := a.store.SaveTournament(ctx, record); err != nil {
		return TournamentRun{}, fmt.Errorf("save tournament %s: %w", runID, err)
	}
	dir, err := a.persist(ctx, summary, func(base string) (string, error) {
		return stats.WriteTournamentArtifacts(base, record)
	})
	if err != nil {
		return TournamentRun{}, err
	}

	a.logger.Info("tournament stored",
		slog.String("run_id", runID),
		slog.String("leader", summary.Leader),
		slog.Int("failures", summary.Failures),
	)
	return TournamentRun{RunID: runID, Result: result, Record: record, Summary: summary, ArtifactsDir: dir}, nil
}

func (a *Arena) RunEvolution(ctx context.Context, cfg evo.MonitorConfig, initial evo.Population, opts RunOptions) (EvolutionRun, error) {
	runID, ctx, done, err := a.begin(ctx, opts)
	if err != nil {
		return EvolutionRun{}, err
	}
	defer done()

	if cfg.Logger == nil {
		cfg.Logger = a.logger
	}
	monitor, err := evo.NewPopulationMonitor(cfg)
	if err != nil {
		return EvolutionRun{}, err
	}
	result, err := monitor.Run(ctx, initial)
	if err != nil {
		return EvolutionRun{}, fmt.Errorf("evolution %s: %w", runID, err)
	}

	record := result.Record(runID)
	summary := a.summary(runID, KindEvolution, cfg.Seed, monitor.Catalog())
	summary.Leader, summary.LeaderScore = result.Final().Dominant()
	summary.Generations = len(result.Snapshots) - 1

	if err := a.store.SaveTrajectory(ctx, record); err != nil {
		return EvolutionRun{}, fmt.Errorf("save trajectory %s: %w", runID, err)
	}
	dir, err := a.persist(ctx, summary, func(base string) (string, error) {
		return stats.WriteTrajectoryArtifacts(base, record)
	})
	if err != nil {
		return EvolutionRun{}, err
	}

	a.logger.Info("evolution stored",
		slog.String("run_id", runID),
		slog.String("dominant", summary.Leader),
		slog.String("stop", string(result.StopReason)),
	)
	return EvolutionRun{RunID: runID, Result: result, Record: record, Summary: summary, ArtifactsDir: dir}, nil
}

// RunMatch plays one match between fresh instances of left and right seeded from
// seed. Only the run summary and artifacts are kept for single matches.
func (a *Arena) RunMatch(ctx context.Context, left, right tournament.Entrant, cfg game.MatchConfig, seed int64, opts RunOptions) (MatchRun, error) {
	runID, ctx, done, err := a.begin(ctx, opts)
	if err != nil {
		return MatchRun{}, err
	}
	defer done()

	players := make([]game.Player, 0, 2)
	for _, entrant := range []tournament.Entrant{left, right} {
		if entrant.New == nil {
			return MatchRun{}, game.ConfigErrorf("entrant %q has no constructor", entrant.Name)
		}
		s, err := entrant.New()
		if err != nil {
			return MatchRun{}, fmt.Errorf("construct %s: %w", entrant.Name, err)
		}
		players = append(players, game.Player{Name: entrant.Name, Strategy: s})
	}

	result, err := game.RunMatch(ctx, players[0], players[1], cfg, rng.New(seed))
	if err != nil {
		return MatchRun{}, fmt.Errorf("match %s: %w", runID, err)
	}

	record := result.Record(true)
	summary := a.summary(runID, KindMatch, seed, []string{result.PlayerA, result.PlayerB})
	summary.Leader, summary.LeaderScore = result.PlayerA, result.MeanPayoffA()
	if result.MeanPayoffB() > result.MeanPayoffA() {
		summary.Leader, summary.LeaderScore = result.PlayerB, result.MeanPayoffB()
	}
	dir, err := a.persist(ctx, summary, func(base string) (string, error) {
		return stats.WriteMatchArtifacts(base, runID, record)
	})
	if err != nil {
		return MatchRun{}, err
	}

	a.logger.Info("match stored",
		slog.String("run_id", runID),
		slog.String("leader", summary.Leader),
		slog.Int("rounds", result.RoundCount()),
	)
	return MatchRun{RunID: runID, Result: result, Record: record, Summary: summary, ArtifactsDir: dir}, nil
}

func (a *Arena) begin(ctx context.Context, opts RunOptions) (string, context.Context, func(), error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	runCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		cancel()
		return "", nil, nil, ErrNotStarted
	}
	if _, exists := a.runs[runID]; exists {
		cancel()
		return "", nil, nil, fmt.Errorf("%w: %s", ErrDuplicateRun, runID)
	}
	a.runs[runID] = cancel
	a.logger.Debug("run started", slog.String("run_id", runID))

	done := func() {
		cancel()
		a.mu.Lock()
		delete(a.runs, runID)
		a.mu.Unlock()
	}
	return runID, runCtx, done, nil
}

func (a *Arena) summary(runID, kind string, seed int64, entrants []string) model.RunSummary {
	return model.RunSummary{
		VersionedRecord: model.CurrentVersion(),
		RunID:           runID,
		Kind:            kind,
		CreatedAtUTC:    a.now().UTC().Format(time.RFC3339Nano),
		Seed:            seed,
		Entrants:        append([]string(nil), entrants...),
	}
}

func (a *Arena) persist(ctx context.Context, summary model.RunSummary, write func(base string) (string, error)) (string, error) {
	if err := a.store.SaveRun(ctx, summary); err != nil {
		return "", fmt.Errorf("save run %s: %w", summary.RunID, err)
	}
	if a.artifactsDir == "" {
		return "", nil
	}
	dir, err := write(a.artifactsDir)
	if err != nil {
		return "", fmt.Errorf("write artifacts %s: %w", summary.RunID, err)
	}
	if err := stats.AppendRunIndex(a.artifactsDir, summary); err != nil {
		return "", fmt.Errorf("update run index: %w", err)
	}
	return dir, nil
}
