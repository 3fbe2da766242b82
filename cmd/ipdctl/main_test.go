package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dilemma/pkg/dilemma"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	base := []string{"--store", "memory", "--log-level", "error"}
	err := run(context.Background(), append(base, args...), &stdout, &stderr)
	return stdout.String(), err
}

func TestParseStrategySpec(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		params  map[string]float64
		wantErr bool
	}{
		{"plain", "TFT", "TFT", nil, false},
		{"params", "GTFT:forgive_p=0.25", "GTFT", map[string]float64{"forgive_p": 0.25}, false},
		{"multiple params", "MEM1:p_cc=1:p_dd=0", "MEM1", map[string]float64{"p_cc": 1, "p_dd": 0}, false},
		{"empty", " ", "", nil, true},
		{"missing value", "RAND:p", "", nil, true},
		{"bad number", "RAND:p=x", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := parseStrategySpec(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseStrategySpec(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStrategySpec(%q): %v", tt.raw, err)
			}
			if spec.Strategy != tt.want || len(spec.Params) != len(tt.params) {
				t.Fatalf("parseStrategySpec(%q) = %+v", tt.raw, spec)
			}
			for k, v := range tt.params {
				if spec.Params[k] != v {
					t.Fatalf("param %s = %v, want %v", k, spec.Params[k], v)
				}
			}
		})
	}
}

func TestStrategiesCommand(t *testing.T) {
	out, err := execute(t, "strategies")
	if err != nil {
		t.Fatalf("strategies: %v", err)
	}
	for _, name := range []string{"ALLC", "ALLD", "TFT", "GRIM"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output:\n%s", name, out)
		}
	}
}

func TestTournamentCommandJSON(t *testing.T) {
	outDir := t.TempDir()
	out, err := execute(t, "--json", "--out", outDir, "tournament",
		"--strategies", "ALLC,ALLD,TFT", "--rounds", "10", "--repetitions", "1", "--seed", "3")
	if err != nil {
		t.Fatalf("tournament: %v", err)
	}
	var summary dilemma.TournamentSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(summary.Standings) != 3 || summary.Standings[0].Name != "ALLD" || summary.Rounds != 30 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(outDir, summary.RunID, "standings.csv")); err != nil {
		t.Fatalf("expected standings artifact: %v", err)
	}
}

func TestMatchCommandText(t *testing.T) {
	out, err := execute(t, "match", "TFT", "ALLD", "--rounds", "3")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !strings.Contains(out, "TFT vs ALLD over 3 rounds") || !strings.Contains(out, "CD=1") {
		t.Fatalf("unexpected match output:\n%s", out)
	}
}

func TestEvolveCommandJSON(t *testing.T) {
	out, err := execute(t, "--json", "evolve",
		"--strategies", "ALLD,TFT,ALLC", "--rounds", "10", "--repetitions", "1", "--generations", "4")
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	var summary dilemma.EvolutionSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if summary.Generations != 4 || len(summary.Final) != 3 {
		t.Fatalf("unexpected evolution summary: %+v", summary)
	}
}

func TestRunsCommandEmptyStore(t *testing.T) {
	out, err := execute(t, "--json", "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty run list, got %q", out)
	}
}

func TestCommandErrors(t *testing.T) {
	if _, err := execute(t, "show"); err == nil {
		t.Fatal("show without run id should fail")
	}
	if _, err := execute(t, "tournament", "--strategies", "NOPE,TFT"); err == nil {
		t.Fatal("unknown strategy should fail")
	}
	if _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "strategies"); err == nil {
		t.Fatal("missing config should fail")
	}
	if _, err := execute(t, "match", "TFT", "ALLD", "--noise", "1.5"); err == nil {
		t.Fatal("invalid noise should fail")
	}
	if _, err := execute(t, "match", "TFT", "ALLD", "--rounds", "5", "--continuation", "0.9"); err == nil {
		t.Fatal("rounds with continuation should fail")
	}
	if _, err := execute(t, "tournament", "--strategies", "TFT,ALLD", "--rounds", "5", "--continuation", "0.9"); err == nil {
		t.Fatal("rounds with continuation should fail for tournaments")
	}
}
