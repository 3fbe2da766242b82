// Package tournament schedules matches between a roster of strategies,
// plays them on a bounded worker pool and reduces the results into per-pairing
// statistics and standings.
package tournament

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"dilemma/internal/game"
	"dilemma/internal/metrics"
	"dilemma/internal/rng"
)

var tracer = otel.Tracer("dilemma.tournament")

// Failure attributes a match that did not complete.
type Failure struct {
	Pairing    int
	PlayerA    string
	PlayerB    string
	Leg        int
	Repetition int
	Err        error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pairing %d (%s vs %s) repetition %d: %v", f.Pairing, f.PlayerA, f.PlayerB, f.Repetition, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type slot struct {
	result  game.MatchResult
	failure *Failure
	done    bool
}

// Run plays the whole tournament. Every match draws from its own stream
// derived from (seed, a, b, leg, repetition), and reductions walk the
// schedule in index order, so the result does not depend on Workers.
func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return Result{}, err
	}

	ctx, span := tracer.Start(ctx, "tournament.Run", trace.WithAttributes(
		attribute.String("tournament.mode", string(cfg.Mode)),
		attribute.Int("tournament.entrants", len(cfg.Roster)),
		attribute.Int("tournament.repetitions", cfg.Repetitions),
		attribute.Int64("tournament.seed", cfg.Seed),
	))
	defer span.End()
	started := time.Now()

	schedule := Schedule(cfg.Mode, len(cfg.Roster))
	slots := make([]slot, len(schedule)*cfg.Repetitions)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for idx := range slots {
		if gctx.Err() != nil {
			break
		}
		pairing := schedule[idx/cfg.Repetitions]
		rep := idx % cfg.Repetitions
		g.Go(func() error {
			res, err := playMatch(gctx, cfg, pairing, rep)
			if err == nil {
				slots[idx] = slot{result: res, done: true}
				metrics.RecordMatch(string(cfg.Mode), res.RoundCount(), false)
				return nil
			}
			if gctx.Err() != nil && errors.Is(err, gctx.Err()) {
				return err
			}
			failure := &Failure{
				Pairing:    pairing.Index,
				PlayerA:    cfg.Roster[pairing.A].Name,
				PlayerB:    cfg.Roster[pairing.B].Name,
				Leg:        pairing.Leg,
				Repetition: rep,
				Err:        err,
			}
			if errors.Is(err, game.ErrContractViolation) {
				metrics.RecordMatch(string(cfg.Mode), 0, true)
				if cfg.OnViolation == ViolationContinue {
					cfg.Logger.Warn("match abandoned", slog.String("error", failure.Error()))
					slots[idx] = slot{failure: failure}
					return nil
				}
			}
			return failure
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	result := reduce(cfg, schedule, slots)
	elapsed := time.Since(started)
	metrics.ObserveTournament(string(cfg.Mode), elapsed.Seconds())

	for _, p := range result.Pairings {
		cfg.Logger.Debug("pairing complete",
			slog.Int("pairing", p.Index),
			slog.String("a", p.PlayerA),
			slog.String("b", p.PlayerB),
			slog.Int("completed", p.Completed),
			slog.Float64("mean_per_round_a", p.MeanPerRoundA),
			slog.Float64("mean_per_round_b", p.MeanPerRoundB),
		)
	}
	summary := result.Summary()
	attrs := []any{
		slog.String("mode", string(cfg.Mode)),
		slog.Int("matches", summary.Matches),
		slog.Int("failures", len(result.Failures)),
		slog.Duration("elapsed", elapsed),
	}
	if len(result.Standings) > 0 {
		attrs = append(attrs, slog.String("leader", result.Standings[0].Name))
	}
	cfg.Logger.Info("tournament complete", attrs...)

	span.SetAttributes(
		attribute.Int("tournament.matches", summary.Matches),
		attribute.Int("tournament.failures", len(result.Failures)),
	)
	return result, nil
}

func playMatch(ctx context.Context, cfg Config, p Pairing, rep int) (game.MatchResult, error) {
	entrantA, entrantB := cfg.Roster[p.A], cfg.Roster[p.B]
	stratA, err := entrantA.New()
	if err != nil {
		return game.MatchResult{}, fmt.Errorf("construct %s: %w", entrantA.Name, err)
	}
	stratB, err := entrantB.New()
	if err != nil {
		return game.MatchResult{}, fmt.Errorf("construct %s: %w", entrantB.Name, err)
	}
	return game.RunMatch(ctx,
		game.Player{Name: entrantA.Name, Strategy: stratA},
		game.Player{Name: entrantB.Name, Strategy: stratB},
		cfg.matchConfig(),
		rng.Stream(cfg.Seed, p.A, p.B, p.Leg, rep),
	)
}
