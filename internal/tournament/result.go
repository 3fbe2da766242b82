package tournament

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"dilemma/internal/game"
	"dilemma/internal/model"
)

// PairingStats aggregates every completed repetition of one pairing.
type PairingStats struct {
	Index       int
	A           int
	B           int
	PlayerA     string
	PlayerB     string
	Leg         int
	Repetitions int
	Completed   int

	MeanTotalA    float64
	VarTotalA     float64
	MeanTotalB    float64
	VarTotalB     float64
	MeanPerRoundA float64
	MeanPerRoundB float64
	CooperationA  float64
	CooperationB  float64
	MeanRounds    float64
	TotalRounds   int

	States      game.JointCounts
	Transitions game.TransitionCounts
	Matches     []game.MatchResult
}

// Standing ranks one entrant over every completed match side it played.
type Standing struct {
	Rank            int
	Index           int
	Name            string
	MeanPayoff      float64
	PayoffVariance  float64
	CooperationRate float64
	TotalPayoff     float64
	Matches         int
}

type Summary struct {
	Matches         int
	Rounds          int
	MeanPayoff      float64
	CooperationRate float64
}

type Result struct {
	Mode        PairingMode
	Seed        int64
	Repetitions int
	Payoffs     game.PayoffMatrix
	Noise       float64
	Horizon     game.Horizon
	Entrants    []string
	Pairings    []PairingStats
	Standings   []Standing
	Failures    []Failure

	payoff [][]float64
	coop   [][]float64
	played [][]int
}

func reduce(cfg Config, schedule []Pairing, slots []slot) Result {
	n := len(cfg.Roster)
	res := Result{
		Mode:        cfg.Mode,
		Seed:        cfg.Seed,
		Repetitions: cfg.Repetitions,
		Payoffs:     cfg.Payoffs,
		Horizon:     cfg.Horizon,
		Entrants:    make([]string, n),
		Pairings:    make([]PairingStats, 0, len(schedule)),
		payoff:      square(n),
		coop:        square(n),
		played:      make([][]int, n),
	}
	if cfg.Noise != nil {
		res.Noise = cfg.Noise.Epsilon
	}
	for i, entrant := range cfg.Roster {
		res.Entrants[i] = entrant.Name
		res.played[i] = make([]int, n)
	}

	perRound := make([][]float64, n)
	cooperation := make([][]float64, n)
	totals := make([]float64, n)
	side := func(entrant, opponent int, total, mean, coop float64) {
		perRound[entrant] = append(perRound[entrant], mean)
		cooperation[entrant] = append(cooperation[entrant], coop)
		totals[entrant] += total
		res.payoff[entrant][opponent] += mean
		res.coop[entrant][opponent] += coop
		res.played[entrant][opponent]++
	}

	for _, p := range schedule {
		stats := PairingStats{
			Index:       p.Index,
			A:           p.A,
			B:           p.B,
			PlayerA:     cfg.Roster[p.A].Name,
			PlayerB:     cfg.Roster[p.B].Name,
			Leg:         p.Leg,
			Repetitions: cfg.Repetitions,
		}
		var totalA, totalB, meanA, meanB, coopA, coopB, rounds []float64
		for rep := 0; rep < cfg.Repetitions; rep++ {
			s := slots[p.Index*cfg.Repetitions+rep]
			if s.failure != nil {
				res.Failures = append(res.Failures, *s.failure)
				continue
			}
			if !s.done {
				continue
			}
			m := s.result
			totalA = append(totalA, m.TotalA)
			totalB = append(totalB, m.TotalB)
			meanA = append(meanA, m.MeanPayoffA())
			meanB = append(meanB, m.MeanPayoffB())
			coopA = append(coopA, m.CooperationA)
			coopB = append(coopB, m.CooperationB)
			rounds = append(rounds, float64(m.RoundCount()))
			stats.TotalRounds += m.RoundCount()
			stats.States.Merge(m.States)
			stats.Transitions.Merge(m.Transitions)
			if cfg.KeepMatches {
				stats.Matches = append(stats.Matches, m)
			}
			side(p.A, p.B, m.TotalA, m.MeanPayoffA(), m.CooperationA)
			side(p.B, p.A, m.TotalB, m.MeanPayoffB(), m.CooperationB)
		}
		stats.Completed = len(totalA)
		stats.MeanTotalA, stats.VarTotalA = meanVariance(totalA)
		stats.MeanTotalB, stats.VarTotalB = meanVariance(totalB)
		stats.MeanPerRoundA = mean(meanA)
		stats.MeanPerRoundB = mean(meanB)
		stats.CooperationA = mean(coopA)
		stats.CooperationB = mean(coopB)
		stats.MeanRounds = mean(rounds)
		res.Pairings = append(res.Pairings, stats)
	}

	for i := range res.payoff {
		for j := range res.payoff[i] {
			if c := res.played[i][j]; c > 0 {
				res.payoff[i][j] /= float64(c)
				res.coop[i][j] /= float64(c)
			}
		}
	}

	res.Standings = make([]Standing, n)
	for i, entrant := range cfg.Roster {
		m, v := meanVariance(perRound[i])
		res.Standings[i] = Standing{
			Index:           i,
			Name:            entrant.Name,
			MeanPayoff:      m,
			PayoffVariance:  v,
			CooperationRate: mean(cooperation[i]),
			TotalPayoff:     totals[i],
			Matches:         len(perRound[i]),
		}
	}
	rankStandings(res.Standings)
	return res
}

// rankStandings orders by mean payoff, then cooperation rate, then name.
func rankStandings(standings []Standing) {
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.MeanPayoff != b.MeanPayoff {
			return a.MeanPayoff > b.MeanPayoff
		}
		if a.CooperationRate != b.CooperationRate {
			return a.CooperationRate > b.CooperationRate
		}
		return a.Name < b.Name
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
}

// meanVariance returns the mean and the unbiased sample variance, with the
// variance defined as 0 below two observations.
func meanVariance(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanVariance(xs, nil)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func square(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	return out
}

// MeanPayoffAgainst is entrant i's mean per-round payoff over every completed
// match side it played against j. ok is false when none completed.
func (r Result) MeanPayoffAgainst(i, j int) (float64, bool) {
	if !r.inRange(i, j) || r.played[i][j] == 0 {
		return 0, false
	}
	return r.payoff[i][j], true
}

// CooperationAgainst is entrant i's mean cooperation rate against j.
func (r Result) CooperationAgainst(i, j int) (float64, bool) {
	if !r.inRange(i, j) || r.played[i][j] == 0 {
		return 0, false
	}
	return r.coop[i][j], true
}

func (r Result) inRange(i, j int) bool {
	return i >= 0 && j >= 0 && i < len(r.played) && j < len(r.played)
}

// IndexOf returns the roster index of name, or -1.
func (r Result) IndexOf(name string) int {
	for i, entrant := range r.Entrants {
		if entrant == name {
			return i
		}
	}
	return -1
}

// Summary pools every completed match side: mean per-round payoff and
// cooperation weighted by rounds played.
func (r Result) Summary() Summary {
	var out Summary
	payoff, coop := 0.0, 0.0
	for _, p := range r.Pairings {
		out.Matches += p.Completed
		out.Rounds += p.TotalRounds
		payoff += (p.MeanTotalA + p.MeanTotalB) * float64(p.Completed)
		coop += (p.CooperationA + p.CooperationB) * float64(p.Completed)
	}
	if out.Rounds > 0 {
		out.MeanPayoff = payoff / float64(2*out.Rounds)
	}
	if out.Matches > 0 {
		out.CooperationRate = coop / float64(2*out.Matches)
	}
	return out
}

// Record converts the result to its serializable form.
func (r Result) Record(runID string) model.TournamentRecord {
	rec := model.TournamentRecord{
		VersionedRecord: model.CurrentVersion(),
		RunID:           runID,
		Mode:            string(r.Mode),
		Seed:            r.Seed,
		Repetitions:     r.Repetitions,
		Noise:           r.Noise,
		Horizon:         model.HorizonRecord{Rounds: r.Horizon.Rounds, Continuation: r.Horizon.Continuation},
		Payoffs: model.PayoffRecord{
			Reward:     r.Payoffs.Reward,
			Sucker:     r.Payoffs.Sucker,
			Temptation: r.Payoffs.Temptation,
			Punishment: r.Payoffs.Punishment,
		},
		Pairings:  make([]model.PairingRecord, 0, len(r.Pairings)),
		Standings: make([]model.StandingRecord, 0, len(r.Standings)),
	}
	for _, p := range r.Pairings {
		rec.Pairings = append(rec.Pairings, model.PairingRecord{
			Index:         p.Index,
			PlayerA:       p.PlayerA,
			PlayerB:       p.PlayerB,
			Leg:           p.Leg,
			Repetitions:   p.Repetitions,
			Completed:     p.Completed,
			MeanTotalA:    p.MeanTotalA,
			VarTotalA:     p.VarTotalA,
			MeanTotalB:    p.MeanTotalB,
			VarTotalB:     p.VarTotalB,
			MeanPerRoundA: p.MeanPerRoundA,
			MeanPerRoundB: p.MeanPerRoundB,
			CooperationA:  p.CooperationA,
			CooperationB:  p.CooperationB,
			MeanRounds:    p.MeanRounds,
			States:        p.States.Record(),
			Transitions:   p.Transitions.Record(),
		})
		for _, m := range p.Matches {
			rec.Matches = append(rec.Matches, m.Record(false))
		}
	}
	for _, s := range r.Standings {
		rec.Standings = append(rec.Standings, model.StandingRecord{
			Rank:            s.Rank,
			Name:            s.Name,
			MeanPayoff:      s.MeanPayoff,
			PayoffVariance:  s.PayoffVariance,
			CooperationRate: s.CooperationRate,
			TotalPayoff:     s.TotalPayoff,
			Matches:         s.Matches,
		})
	}
	for _, f := range r.Failures {
		rec.Failures = append(rec.Failures, model.FailureRecord{
			Pairing:    f.Pairing,
			PlayerA:    f.PlayerA,
			PlayerB:    f.PlayerB,
			Repetition: f.Repetition,
			Error:      f.Err.Error(),
		})
	}
	return rec
}
