// Package storage persists run summaries, tournament records and evolution
// trajectories behind a backend-neutral Store.
package storage

import (
	"context"
	"errors"

	"dilemma/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store defines the persistence operations for finished runs. Get methods
// report absence with ok=false rather than an error.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, summary model.RunSummary) error
	GetRun(ctx context.Context, runID string) (model.RunSummary, bool, error)
	// ListRuns returns summaries newest first.
	ListRuns(ctx context.Context) ([]model.RunSummary, error)
	SaveTournament(ctx context.Context, record model.TournamentRecord) error
	GetTournament(ctx context.Context, runID string) (model.TournamentRecord, bool, error)
	SaveTrajectory(ctx context.Context, record model.TrajectoryRecord) error
	GetTrajectory(ctx context.Context, runID string) (model.TrajectoryRecord, bool, error)
}
