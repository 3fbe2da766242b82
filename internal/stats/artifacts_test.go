package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"dilemma/internal/model"
)

func tournamentRecord() model.TournamentRecord {
	return model.TournamentRecord{
		VersionedRecord: model.CurrentVersion(),
		RunID:           "run-1",
		Mode:            "round_robin",
		Seed:            3,
		Repetitions:     1,
		Horizon:         model.HorizonRecord{Rounds: 10},
		Pairings: []model.PairingRecord{{
			Index: 0, PlayerA: "TFT", PlayerB: "ALLD", Completed: 1,
			MeanTotalA: 9, MeanTotalB: 14, MeanPerRoundA: 0.9, MeanPerRoundB: 1.4,
			CooperationA: 0.1, MeanRounds: 10,
			States: model.JointCounts{CD: 1, DD: 9},
		}},
		Standings: []model.StandingRecord{
			{Rank: 1, Name: "ALLD", MeanPayoff: 1.4, TotalPayoff: 14, Matches: 1},
			{Rank: 2, Name: "TFT", MeanPayoff: 0.9, CooperationRate: 0.1, TotalPayoff: 9, Matches: 1},
		},
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestWriteTournamentArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	runDir, err := WriteTournamentArtifacts(baseDir, tournamentRecord())
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range []string{"tournament.json", "standings.csv", "pairings.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	pairings := readRows(t, filepath.Join(runDir, "pairings.csv"))
	if len(pairings) != 2 || pairings[1][1] != "TFT" || pairings[1][15] != "9" {
		t.Fatalf("unexpected pairings table: %v", pairings)
	}

	standings, ok, err := ReadStandings(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read standings: ok=%v err=%v", ok, err)
	}
	if len(standings) != 2 || standings[0].Name != "ALLD" || standings[1].CooperationRate != 0.1 {
		t.Fatalf("unexpected standings: %+v", standings)
	}

	record, ok, err := ReadTournament(baseDir, "run-1")
	if err != nil || !ok || record.Pairings[0].States.DD != 9 {
		t.Fatalf("read tournament: %+v ok=%v err=%v", record, ok, err)
	}
}

func TestWriteTrajectoryArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	record := model.TrajectoryRecord{
		VersionedRecord: model.CurrentVersion(),
		RunID:           "evo-1",
		Generations: []model.GenerationRecord{
			{Generation: 0, Shares: map[string]float64{"TFT": 0.5, "ALLD": 0.5}, Fitness: map[string]float64{"TFT": 2, "ALLD": 2.2}},
			{Generation: 1, Shares: map[string]float64{"TFT": 0.45, "ALLD": 0.55}, MaxDelta: 0.05},
		},
	}
	runDir, err := WriteTrajectoryArtifacts(baseDir, record)
	if err != nil {
		t.Fatalf("write trajectory: %v", err)
	}
	rows := readRows(t, filepath.Join(runDir, "trajectory.csv"))
	if len(rows) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(rows))
	}
	if rows[1][1] != "ALLD" || rows[1][3] != "2.2" {
		t.Fatalf("rows should be sorted by strategy name: %v", rows[1])
	}
	if rows[3][3] != "" {
		t.Fatalf("missing fitness should be blank, got %q", rows[3][3])
	}

	loaded, ok, err := ReadTrajectory(baseDir, "evo-1")
	if err != nil || !ok || len(loaded.Generations) != 2 {
		t.Fatalf("read trajectory: %+v ok=%v err=%v", loaded, ok, err)
	}
}

func TestWriteMatchArtifacts(t *testing.T) {
	record := model.MatchRecord{
		VersionedRecord: model.CurrentVersion(),
		PlayerA:         "TFT",
		PlayerB:         "ALLD",
		RoundCount:      2,
		Rounds: []model.RoundRecord{
			{Round: 1, ChosenA: "C", ChosenB: "D", EffectiveA: "C", EffectiveB: "D", PayoffA: 0, PayoffB: 5},
			{Round: 2, ChosenA: "D", ChosenB: "D", EffectiveA: "D", EffectiveB: "D", PayoffA: 1, PayoffB: 1},
		},
	}
	runDir, err := WriteMatchArtifacts(t.TempDir(), "m-1", record)
	if err != nil {
		t.Fatalf("write match: %v", err)
	}
	rows := readRows(t, filepath.Join(runDir, "rounds.csv"))
	if len(rows) != 3 || rows[1][6] != "5" || rows[2][3] != "D" {
		t.Fatalf("unexpected rounds table: %v", rows)
	}
}

func TestArtifactsRequireRunID(t *testing.T) {
	record := tournamentRecord()
	record.RunID = " "
	if _, err := WriteTournamentArtifacts(t.TempDir(), record); err == nil {
		t.Fatal("expected run id error")
	}
	if _, err := WriteMatchArtifacts(t.TempDir(), "", model.MatchRecord{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestRunIndexOrderingAndReplace(t *testing.T) {
	baseDir := t.TempDir()
	entries := []model.RunSummary{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "b", CreatedAtUTC: "2026-01-03T00:00:00Z"},
		{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "a", CreatedAtUTC: "2026-01-04T00:00:00Z", Leader: "TFT"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	index, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(index) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(index))
	}
	if index[0].RunID != "a" || index[0].Leader != "TFT" || index[1].RunID != "b" || index[2].RunID != "c" {
		t.Fatalf("unexpected index order: %+v", index)
	}
	if err := AppendRunIndex(baseDir, model.RunSummary{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	if _, ok, err := ReadStandings(t.TempDir(), "none"); ok || err != nil {
		t.Fatalf("missing standings: ok=%v err=%v", ok, err)
	}
	if _, ok, err := ReadTrajectory(t.TempDir(), "none"); ok || err != nil {
		t.Fatalf("missing trajectory: ok=%v err=%v", ok, err)
	}
}
