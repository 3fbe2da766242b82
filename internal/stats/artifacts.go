// Package stats writes run artifacts to disk: JSON records plus CSV tables
// for standings, pairings, trajectories and per-round match telemetry.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"dilemma/internal/model"
)

const runIndexFile = "run_index.json"

var (
	standingsHeader  = []string{"rank", "name", "mean_payoff", "payoff_variance", "cooperation_rate", "total_payoff", "matches"}
	pairingsHeader   = []string{"index", "player_a", "player_b", "leg", "completed", "mean_total_a", "mean_total_b", "mean_per_round_a", "mean_per_round_b", "cooperation_a", "cooperation_b", "mean_rounds", "cc", "cd", "dc", "dd"}
	trajectoryHeader = []string{"generation", "strategy", "share", "fitness", "mean_fitness", "max_delta", "mutants"}
	roundsHeader     = []string{"round", "chosen_a", "chosen_b", "effective_a", "effective_b", "payoff_a", "payoff_b"}
)

// WriteTournamentArtifacts writes tournament.json, standings.csv and
// pairings.csv under baseDir/<run id>.
func WriteTournamentArtifacts(baseDir string, record model.TournamentRecord) (string, error) {
	runDir, err := runDir(baseDir, record.RunID)
	if err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "tournament.json"), record); err != nil {
		return "", err
	}

	standings := make([][]string, 0, len(record.Standings))
	for _, s := range record.Standings {
		standings = append(standings, []string{
			strconv.Itoa(s.Rank),
			s.Name,
			formatFloat(s.MeanPayoff),
			formatFloat(s.PayoffVariance),
			formatFloat(s.CooperationRate),
			formatFloat(s.TotalPayoff),
			strconv.Itoa(s.Matches),
		})
	}
	if err := writeCSV(filepath.Join(runDir, "standings.csv"), standingsHeader, standings); err != nil {
		return "", err
	}

	pairings := make([][]string, 0, len(record.Pairings))
	for _, p := range record.Pairings {
		pairings = append(pairings, []string{
			strconv.Itoa(p.Index),
			p.PlayerA,
			p.PlayerB,
			strconv.Itoa(p.Leg),
			strconv.Itoa(p.Completed),
			formatFloat(p.MeanTotalA),
			formatFloat(p.MeanTotalB),
			formatFloat(p.MeanPerRoundA),
			formatFloat(p.MeanPerRoundB),
			formatFloat(p.CooperationA),
			formatFloat(p.CooperationB),
			formatFloat(p.MeanRounds),
			strconv.Itoa(p.States.CC),
			strconv.Itoa(p.States.CD),
			strconv.Itoa(p.States.DC),
			strconv.Itoa(p.States.DD),
		})
	}
	if err := writeCSV(filepath.Join(runDir, "pairings.csv"), pairingsHeader, pairings); err != nil {
		return "", err
	}
	return runDir, nil
}

// WriteTrajectoryArtifacts writes trajectory.json and a long-format
// trajectory.csv with one row per generation and strategy.
func WriteTrajectoryArtifacts(baseDir string, record model.TrajectoryRecord) (string, error) {
	runDir, err := runDir(baseDir, record.RunID)
	if err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "trajectory.json"), record); err != nil {
		return "", err
	}

	var rows [][]string
	for _, gen := range record.Generations {
		for _, name := range sortedKeys(gen.Shares) {
			fitness := ""
			if f, ok := gen.Fitness[name]; ok {
				fitness = formatFloat(f)
			}
			rows = append(rows, []string{
				strconv.Itoa(gen.Generation),
				name,
				formatFloat(gen.Shares[name]),
				fitness,
				formatFloat(gen.MeanFitness),
				formatFloat(gen.MaxDelta),
				formatFloat(gen.Mutants),
			})
		}
	}
	if err := writeCSV(filepath.Join(runDir, "trajectory.csv"), trajectoryHeader, rows); err != nil {
		return "", err
	}
	return runDir, nil
}

// WriteMatchArtifacts writes match.json and rounds.csv for a single match
// under baseDir/<run id>.
func WriteMatchArtifacts(baseDir, runID string, record model.MatchRecord) (string, error) {
	runDir, err := runDir(baseDir, runID)
	if err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "match.json"), record); err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(record.Rounds))
	for _, r := range record.Rounds {
		rows = append(rows, []string{
			strconv.Itoa(r.Round),
			r.ChosenA,
			r.ChosenB,
			r.EffectiveA,
			r.EffectiveB,
			formatFloat(r.PayoffA),
			formatFloat(r.PayoffB),
		})
	}
	if err := writeCSV(filepath.Join(runDir, "rounds.csv"), roundsHeader, rows); err != nil {
		return "", err
	}
	return runDir, nil
}

// AppendRunIndex records summary in baseDir/run_index.json, replacing any
// entry with the same run id.
func AppendRunIndex(baseDir string, summary model.RunSummary) error {
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == summary.RunID {
			index[i] = summary
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, summary)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs newest first.
func ListRunIndex(baseDir string) ([]model.RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []model.RunSummary{}, nil
		}
		return nil, err
	}

	var entries []model.RunSummary
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// ReadStandings loads standings.csv from a run directory.
func ReadStandings(baseDir, runID string) ([]model.StandingRecord, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "standings.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.StandingRecord{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(standingsHeader) {
		return nil, false, fmt.Errorf("standings header must have %d columns, got %d", len(standingsHeader), len(header))
	}

	var out []model.StandingRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		standing, err := parseStanding(row)
		if err != nil {
			return nil, false, err
		}
		out = append(out, standing)
	}
	return out, true, nil
}

// ReadTournament loads tournament.json from a run directory.
func ReadTournament(baseDir, runID string) (model.TournamentRecord, bool, error) {
	var record model.TournamentRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "tournament.json"), &record)
	return record, ok, err
}

// ReadTrajectory loads trajectory.json from a run directory.
func ReadTrajectory(baseDir, runID string) (model.TrajectoryRecord, bool, error) {
	var record model.TrajectoryRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "trajectory.json"), &record)
	return record, ok, err
}

func parseStanding(row []string) (model.StandingRecord, error) {
	var (
		s    model.StandingRecord
		err  error
		errs []string
	)
	atoi := func(v string) int {
		n, e := strconv.Atoi(v)
		if e != nil {
			errs = append(errs, e.Error())
		}
		return n
	}
	atof := func(v string) float64 {
		f, e := strconv.ParseFloat(v, 64)
		if e != nil {
			errs = append(errs, e.Error())
		}
		return f
	}
	s.Rank = atoi(row[0])
	s.Name = row[1]
	s.MeanPayoff = atof(row[2])
	s.PayoffVariance = atof(row[3])
	s.CooperationRate = atof(row[4])
	s.TotalPayoff = atof(row[5])
	s.Matches = atoi(row[6])
	if len(errs) > 0 {
		err = fmt.Errorf("standings row %q: %s", row[1], strings.Join(errs, "; "))
	}
	return s, err
}

func runDir(baseDir, runID string) (string, error) {
	if strings.TrimSpace(runID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, target any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, err
	}
	return true, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Sync()
}
