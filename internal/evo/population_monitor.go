// Package evo runs discrete-time replicator dynamics with mutation over a
// population of catalog strategies whose fitness comes from tournament play.
package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/rand"

	"dilemma/internal/game"
	"dilemma/internal/logging"
	"dilemma/internal/metrics"
	"dilemma/internal/model"
	"dilemma/internal/rng"
	"dilemma/internal/tournament"
)

var tracer = otel.Tracer("dilemma.evo")

type StopReason string

const (
	StopGenerations StopReason = "generations"
	StopStable      StopReason = "stable"
)

// GenerationSnapshot is the population after Generation updates. Fitness is
// the evaluation that produced the following snapshot and is nil on the last.
type GenerationSnapshot struct {
	Generation  int
	Population  Population
	Fitness     map[string]float64
	MeanFitness float64
	MaxDelta    float64
	Mutants     float64
}

type RunResult struct {
	Snapshots      []GenerationSnapshot
	Converged      bool
	StopReason     StopReason
	Metric         string
	MutationRate   float64
	MutationPolicy MutationPolicy
	Seed           int64
}

func (r RunResult) Final() Population {
	if len(r.Snapshots) == 0 {
		return Population{}
	}
	return r.Snapshots[len(r.Snapshots)-1].Population
}

// Record converts the trajectory to its serializable form.
func (r RunResult) Record(runID string) model.TrajectoryRecord {
	final := r.Final()
	rec := model.TrajectoryRecord{
		VersionedRecord: model.CurrentVersion(),
		RunID:           runID,
		Mode:            string(final.Mode),
		Total:           final.Total,
		Metric:          r.Metric,
		MutationRate:    r.MutationRate,
		MutationPolicy:  string(r.MutationPolicy),
		Seed:            r.Seed,
		Generations:     make([]model.GenerationRecord, 0, len(r.Snapshots)),
		Converged:       r.Converged,
		StopReason:      string(r.StopReason),
	}
	for _, snap := range r.Snapshots {
		rec.Generations = append(rec.Generations, model.GenerationRecord{
			Generation:  snap.Generation,
			Shares:      snap.Population.Clone().Shares,
			Fitness:     copyMap(snap.Fitness),
			MeanFitness: snap.MeanFitness,
			MaxDelta:    snap.MaxDelta,
			Mutants:     snap.Mutants,
		})
	}
	return rec
}

type MonitorConfig struct {
	// Tournament supplies the catalog (its roster) and the match rules.
	// Fitness needs every ordered pairing, so Mode must be empty or
	// all_play_all.
	Tournament   tournament.Config
	Metric       FitnessMetric
	MutationRate float64
	Mutation     MutationPolicy
	// Generations counts replicator updates; a full run records
	// Generations+1 snapshots.
	Generations int
	// StabilityThreshold stops the run early once no frequency moves by this
	// much in one generation. Zero disables the check.
	StabilityThreshold float64
	// Resample replays the tournament every generation instead of reusing
	// the first interaction table.
	Resample bool
	Seed     int64
	Logger   *slog.Logger
}

type PopulationMonitor struct {
	cfg     MonitorConfig
	catalog []string
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	switch cfg.Tournament.Mode {
	case "", tournament.AllPlayAll:
		cfg.Tournament.Mode = tournament.AllPlayAll
	default:
		return nil, game.ConfigErrorf("evolution requires %s pairings, got %s", tournament.AllPlayAll, cfg.Tournament.Mode)
	}
	tcfg, err := cfg.Tournament.Validate()
	if err != nil {
		return nil, err
	}
	cfg.Tournament = tcfg
	if cfg.Metric == nil {
		return nil, game.ConfigErrorf("fitness metric is required")
	}
	if math.IsNaN(cfg.MutationRate) || cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, game.ConfigErrorf("mutation rate must be in [0, 1], got %g", cfg.MutationRate)
	}
	policy, err := ParseMutationPolicy(string(cfg.Mutation))
	if err != nil {
		return nil, err
	}
	cfg.Mutation = policy
	if cfg.Generations < 1 {
		return nil, game.ConfigErrorf("generations must be >= 1, got %d", cfg.Generations)
	}
	if math.IsNaN(cfg.StabilityThreshold) || cfg.StabilityThreshold < 0 {
		return nil, game.ConfigErrorf("stability threshold must be >= 0, got %g", cfg.StabilityThreshold)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	catalog := make([]string, len(cfg.Tournament.Roster))
	for i, entrant := range cfg.Tournament.Roster {
		catalog[i] = entrant.Name
	}
	return &PopulationMonitor{cfg: cfg, catalog: catalog}, nil
}

// Catalog lists the strategy names a population may hold, in roster order.
func (m *PopulationMonitor) Catalog() []string {
	return append([]string(nil), m.catalog...)
}

func (m *PopulationMonitor) Run(ctx context.Context, initial Population) (result RunResult, err error) {
	if err := initial.Validate(m.catalog); err != nil {
		return RunResult{}, err
	}

	ctx, span := tracer.Start(ctx, "evo.Run", trace.WithAttributes(
		attribute.String("evo.mode", string(initial.Mode)),
		attribute.String("evo.metric", m.cfg.Metric.Name()),
		attribute.Int("evo.generations", m.cfg.Generations),
		attribute.Float64("evo.mutation_rate", m.cfg.MutationRate),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordEvolution("error")
		} else {
			metrics.RecordEvolution(string(result.StopReason))
		}
		span.End()
	}()

	mode := initial.Mode
	total := initial.Total
	src := rand.NewSource(uint64(m.cfg.Seed))
	x := initial.vector(m.catalog)

	result = RunResult{
		Snapshots:      make([]GenerationSnapshot, 0, m.cfg.Generations+1),
		StopReason:     StopGenerations,
		Metric:         m.cfg.Metric.Name(),
		MutationRate:   m.cfg.MutationRate,
		MutationPolicy: m.cfg.Mutation,
		Seed:           m.cfg.Seed,
	}
	result.Snapshots = append(result.Snapshots, GenerationSnapshot{
		Generation: 0,
		Population: fromVector(mode, total, m.catalog, x),
	})

	var table Interactions
	for gen := 1; gen <= m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}
		if table == nil || m.cfg.Resample {
			table, err = m.evaluate(ctx, gen)
			if err != nil {
				return RunResult{}, err
			}
		}

		fitness := m.fitness(table, x, total)
		next := replicate(x, fitness, total)
		if mode == CountMode {
			next = apportion(next, int(math.Round(total)), m.catalog)
		}
		var mutants float64
		if mode == CountMode {
			next, mutants = mutateCount(next, m.cfg.MutationRate, m.cfg.Mutation, src)
		} else {
			next, mutants = mutateFrequency(next, m.cfg.MutationRate, m.cfg.Mutation)
		}
		if err := checkShares(next, total, gen); err != nil {
			return RunResult{}, err
		}

		maxDelta := 0.0
		for i := range next {
			if d := math.Abs(next[i]-x[i]) / total; d > maxDelta {
				maxDelta = d
			}
		}
		prev := &result.Snapshots[len(result.Snapshots)-1]
		prev.Fitness = make(map[string]float64, len(m.catalog))
		for i, name := range m.catalog {
			prev.Fitness[name] = fitness[i]
		}
		prev.MeanFitness = meanFitness(x, fitness, total)

		x = next
		snap := GenerationSnapshot{
			Generation: gen,
			Population: fromVector(mode, total, m.catalog, x),
			MaxDelta:   maxDelta,
			Mutants:    mutants,
		}
		result.Snapshots = append(result.Snapshots, snap)
		metrics.RecordGeneration()

		leader, share := snap.Population.Dominant()
		m.cfg.Logger.Info("generation complete",
			slog.Int("generation", gen),
			slog.String("leader", leader),
			slog.Float64("leader_share", share),
			slog.Float64("mean_fitness", prev.MeanFitness),
			slog.Float64("max_delta", maxDelta),
			slog.Float64("mutants", mutants),
		)

		if m.cfg.StabilityThreshold > 0 && maxDelta < m.cfg.StabilityThreshold {
			result.Converged = true
			result.StopReason = StopStable
			break
		}
	}

	span.SetAttributes(
		attribute.Int("evo.recorded", len(result.Snapshots)),
		attribute.Bool("evo.converged", result.Converged),
	)
	return result, nil
}

// evaluate plays the catalog tournament for generation gen. The first table
// is seeded with Seed; resampled tables derive a seed per generation.
func (m *PopulationMonitor) evaluate(ctx context.Context, gen int) (Interactions, error) {
	cfg := m.cfg.Tournament
	cfg.Seed = m.cfg.Seed
	if m.cfg.Resample {
		cfg.Seed = rng.Derive(m.cfg.Seed, gen)
	}
	res, err := tournament.Run(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("generation %d: %w", gen, err)
	}
	if len(res.Failures) > 0 {
		first := res.Failures[0]
		return nil, fmt.Errorf("generation %d: %d matches failed: %w", gen, len(res.Failures), &first)
	}
	return res, nil
}

func (m *PopulationMonitor) fitness(table Interactions, x []float64, total float64) []float64 {
	weights := make([]float64, len(x))
	for i := range x {
		weights[i] = x[i] / total
	}
	out := make([]float64, len(x))
	for i := range x {
		out[i] = m.cfg.Metric.Fitness(table, i, weights)
	}
	return out
}

// replicate applies x_i' = total * x_i f_i / sum_j x_j f_j. Fitness is shifted
// to be non-negative over the support first; a zero denominator leaves the
// shares unchanged.
func replicate(x, f []float64, total float64) []float64 {
	shift := 0.0
	for i := range x {
		if x[i] > 0 && f[i] < -shift {
			shift = -f[i]
		}
	}
	denom := 0.0
	for i := range x {
		denom += x[i] * (f[i] + shift)
	}
	out := make([]float64, len(x))
	if denom <= 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		copy(out, x)
		return out
	}
	for i := range x {
		out[i] = total * x[i] * (f[i] + shift) / denom
	}
	return out
}

// apportion rounds expected counts to integers summing to n by the largest
// remainder method, breaking remainder ties by name.
func apportion(expected []float64, n int, names []string) []float64 {
	type alloc struct {
		idx       int
		count     int
		remainder float64
	}
	allocs := make([]alloc, len(expected))
	assigned := 0
	for i, e := range expected {
		base := int(math.Floor(e))
		allocs[i] = alloc{idx: i, count: base, remainder: e - float64(base)}
		assigned += base
	}
	left := n - assigned
	sort.SliceStable(allocs, func(i, j int) bool {
		if allocs[i].remainder == allocs[j].remainder {
			return names[allocs[i].idx] < names[allocs[j].idx]
		}
		return allocs[i].remainder > allocs[j].remainder
	})
	for i := 0; i < left && len(allocs) > 0; i++ {
		allocs[i%len(allocs)].count++
	}
	out := make([]float64, len(expected))
	for _, a := range allocs {
		out[a.idx] = float64(a.count)
	}
	return out
}

func checkShares(shares []float64, total float64, gen int) error {
	sum := 0.0
	for i, s := range shares {
		if s < 0 || math.IsNaN(s) {
			return fmt.Errorf("%w: generation %d: share %d is %g", game.ErrAggregationInconsistency, gen, i, s)
		}
		sum += s
	}
	if math.Abs(sum-total) > Tolerance {
		return fmt.Errorf("%w: generation %d: shares sum to %.12g, want %g", game.ErrAggregationInconsistency, gen, sum, total)
	}
	return nil
}

func meanFitness(x, f []float64, total float64) float64 {
	sum := 0.0
	for i := range x {
		sum += x[i] * f[i]
	}
	return sum / total
}

func copyMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
