package storage

import (
	"context"
	"errors"
	"testing"

	"dilemma/internal/model"
)

func sampleSummary(id, created string) model.RunSummary {
	return model.RunSummary{
		VersionedRecord: model.CurrentVersion(),
		RunID:           id,
		Kind:            "tournament",
		CreatedAtUTC:    created,
		Seed:            7,
		Entrants:        []string{"TFT", "ALLD"},
		Leader:          "ALLD",
		LeaderScore:     1.4,
	}
}

func sampleTournament(id string) model.TournamentRecord {
	return model.TournamentRecord{
		VersionedRecord: model.CurrentVersion(),
		RunID:           id,
		Mode:            "round_robin",
		Seed:            7,
		Repetitions:     2,
		Horizon:         model.HorizonRecord{Rounds: 10},
		Payoffs:         model.PayoffRecord{Reward: 3, Sucker: 0, Temptation: 5, Punishment: 1},
		Pairings: []model.PairingRecord{{
			Index: 0, PlayerA: "TFT", PlayerB: "ALLD", Repetitions: 2, Completed: 2,
			MeanTotalA: 9, MeanTotalB: 14, MeanPerRoundA: 0.9, MeanPerRoundB: 1.4,
			CooperationA: 0.1, MeanRounds: 10,
			States:      model.JointCounts{CD: 2, DD: 18},
			Transitions: map[string]int{"CD>DD": 2, "DD>DD": 16},
		}},
		Standings: []model.StandingRecord{
			{Rank: 1, Name: "ALLD", MeanPayoff: 1.4, Matches: 2},
			{Rank: 2, Name: "TFT", MeanPayoff: 0.9, CooperationRate: 0.1, Matches: 2},
		},
		Matches: []model.MatchRecord{{VersionedRecord: model.CurrentVersion(), PlayerA: "TFT", PlayerB: "ALLD", RoundCount: 10}},
	}
}

func sampleTrajectory(id string) model.TrajectoryRecord {
	return model.TrajectoryRecord{
		VersionedRecord: model.CurrentVersion(),
		RunID:           id,
		Mode:            "frequency",
		Total:           1,
		Metric:          "mean_payoff",
		MutationPolicy:  "absent_only",
		Generations: []model.GenerationRecord{
			{Generation: 0, Shares: map[string]float64{"TFT": 0.5, "ALLD": 0.5}, Fitness: map[string]float64{"TFT": 1.95, "ALLD": 2.2}},
			{Generation: 1, Shares: map[string]float64{"TFT": 0.47, "ALLD": 0.53}, MaxDelta: 0.03},
		},
		StopReason: "generations",
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetTournament(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing tournament: ok=%v err=%v", ok, err)
	}

	for _, summary := range []model.RunSummary{
		sampleSummary("b", "2026-01-02T00:00:00Z"),
		sampleSummary("a", "2026-01-02T00:00:00Z"),
		sampleSummary("c", "2026-01-03T00:00:00Z"),
	} {
		if err := store.SaveRun(ctx, summary); err != nil {
			t.Fatalf("save run %s: %v", summary.RunID, err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].RunID != "c" || runs[1].RunID != "a" || runs[2].RunID != "b" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
	run, ok, err := store.GetRun(ctx, "a")
	if err != nil || !ok || run.Leader != "ALLD" || len(run.Entrants) != 2 {
		t.Fatalf("get run: %+v ok=%v err=%v", run, ok, err)
	}

	tournament := sampleTournament("c")
	if err := store.SaveTournament(ctx, tournament); err != nil {
		t.Fatalf("save tournament: %v", err)
	}
	tournament.Standings[0].Name = "mutated"
	loaded, ok, err := store.GetTournament(ctx, "c")
	if err != nil || !ok {
		t.Fatalf("get tournament: ok=%v err=%v", ok, err)
	}
	if loaded.Standings[0].Name != "ALLD" {
		t.Fatalf("stored tournament shares memory with caller: %+v", loaded.Standings)
	}
	if loaded.Pairings[0].Transitions["DD>DD"] != 16 || len(loaded.Matches) != 1 {
		t.Fatalf("tournament round trip lost data: %+v", loaded)
	}

	trajectory := sampleTrajectory("d")
	if err := store.SaveTrajectory(ctx, trajectory); err != nil {
		t.Fatalf("save trajectory: %v", err)
	}
	trajectory.StopReason = "stable"
	if err := store.SaveTrajectory(ctx, trajectory); err != nil {
		t.Fatalf("overwrite trajectory: %v", err)
	}
	gotTrajectory, ok, err := store.GetTrajectory(ctx, "d")
	if err != nil || !ok {
		t.Fatalf("get trajectory: ok=%v err=%v", ok, err)
	}
	if gotTrajectory.StopReason != "stable" || gotTrajectory.Generations[1].Shares["ALLD"] != 0.53 {
		t.Fatalf("unexpected trajectory: %+v", gotTrajectory)
	}

	stale := sampleTournament("stale")
	stale.SchemaVersion = 99
	if err := store.SaveTournament(ctx, stale); err != nil {
		t.Fatalf("save stale tournament: %v", err)
	}
	if _, _, err := store.GetTournament(ctx, "stale"); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
