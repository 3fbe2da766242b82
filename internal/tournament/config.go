package tournament

import (
	"fmt"
	"log/slog"
	"strings"

	"dilemma/internal/game"
	"dilemma/internal/logging"
)

type PairingMode string

const (
	// RoundRobin plays every unordered pair i<j once.
	RoundRobin PairingMode = "round_robin"
	// AllPlayAll plays every ordered pair, including self-play.
	AllPlayAll PairingMode = "all_play_all"
	// DoubleRoundRobin plays every unordered pair twice with sides swapped on the second leg.
	DoubleRoundRobin PairingMode = "double_round_robin"
)

func ParsePairingMode(s string) (PairingMode, error) {
	switch mode := PairingMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case RoundRobin, AllPlayAll, DoubleRoundRobin:
		return mode, nil
	case "":
		return RoundRobin, nil
	default:
		return "", game.ConfigErrorf("unknown pairing mode %q", s)
	}
}

// ViolationPolicy decides what a strategy contract violation does to the
// rest of the tournament.
type ViolationPolicy string

const (
	ViolationContinue ViolationPolicy = "continue"
	ViolationAbort    ViolationPolicy = "abort"
)

func ParseViolationPolicy(s string) (ViolationPolicy, error) {
	switch policy := ViolationPolicy(strings.ToLower(strings.TrimSpace(s))); policy {
	case ViolationContinue, ViolationAbort:
		return policy, nil
	case "":
		return ViolationContinue, nil
	default:
		return "", game.ConfigErrorf("unknown violation policy %q", s)
	}
}

// Entrant is a named strategy constructor. New is called once per match side
// so no two matches share strategy state.
type Entrant struct {
	Name string
	New  func() (game.Strategy, error)
}

type Config struct {
	Roster      []Entrant
	Payoffs     game.PayoffMatrix
	Noise       *game.Noise
	Horizon     game.Horizon
	Repetitions int
	Mode        PairingMode
	Seed        int64
	Workers     int
	OnViolation ViolationPolicy
	// KeepMatches retains every MatchResult on its pairing.
	KeepMatches bool
	Logger      *slog.Logger
}

// Validate checks cfg without running anything and returns it with defaults
// applied.
func (cfg Config) Validate() (Config, error) {
	if len(cfg.Roster) < 2 {
		return cfg, game.ConfigErrorf("tournament requires at least 2 entrants, got %d", len(cfg.Roster))
	}
	seen := make(map[string]struct{}, len(cfg.Roster))
	for i, entrant := range cfg.Roster {
		if strings.TrimSpace(entrant.Name) == "" {
			return cfg, game.ConfigErrorf("entrant name is required at index %d", i)
		}
		if entrant.New == nil {
			return cfg, game.ConfigErrorf("entrant %s has no constructor", entrant.Name)
		}
		if _, dup := seen[entrant.Name]; dup {
			return cfg, game.ConfigErrorf("duplicate entrant name %s", entrant.Name)
		}
		seen[entrant.Name] = struct{}{}
	}
	if cfg.Repetitions < 1 {
		return cfg, game.ConfigErrorf("repetitions must be >= 1, got %d", cfg.Repetitions)
	}
	mode, err := ParsePairingMode(string(cfg.Mode))
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode
	policy, err := ParseViolationPolicy(string(cfg.OnViolation))
	if err != nil {
		return cfg, err
	}
	cfg.OnViolation = policy
	match := game.MatchConfig{Payoffs: cfg.Payoffs, Noise: cfg.Noise, Horizon: cfg.Horizon}
	if err := match.Validate(); err != nil {
		return cfg, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return cfg, nil
}

func (cfg Config) matchConfig() game.MatchConfig {
	return game.MatchConfig{Payoffs: cfg.Payoffs, Noise: cfg.Noise, Horizon: cfg.Horizon}
}

// Pairing is one scheduled encounter between roster indices A and B.
type Pairing struct {
	Index int
	A     int
	B     int
	Leg   int
}

func (p Pairing) String() string {
	return fmt.Sprintf("pairing %d (%d vs %d, leg %d)", p.Index, p.A, p.B, p.Leg)
}

// Schedule lists pairings for n entrants in their canonical order.
func Schedule(mode PairingMode, n int) []Pairing {
	var out []Pairing
	add := func(a, b, leg int) {
		out = append(out, Pairing{Index: len(out), A: a, B: b, Leg: leg})
	}
	switch mode {
	case AllPlayAll:
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				add(i, j, 0)
			}
		}
	case DoubleRoundRobin:
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				add(i, j, 0)
				add(j, i, 1)
			}
		}
	default:
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				add(i, j, 0)
			}
		}
	}
	return out
}
