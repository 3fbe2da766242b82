package model

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

func CurrentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

type PayoffRecord struct {
	Reward     float64 `json:"reward"`
	Sucker     float64 `json:"sucker"`
	Temptation float64 `json:"temptation"`
	Punishment float64 `json:"punishment"`
}

type HorizonRecord struct {
	Rounds       int     `json:"rounds,omitempty"`
	Continuation float64 `json:"continuation,omitempty"`
}

type JointCounts struct {
	CC int `json:"cc"`
	CD int `json:"cd"`
	DC int `json:"dc"`
	DD int `json:"dd"`
}

type RoundRecord struct {
	Round      int     `json:"round"`
	ChosenA    string  `json:"chosen_a"`
	ChosenB    string  `json:"chosen_b"`
	EffectiveA string  `json:"effective_a"`
	EffectiveB string  `json:"effective_b"`
	PayoffA    float64 `json:"payoff_a"`
	PayoffB    float64 `json:"payoff_b"`
}

type MatchRecord struct {
	VersionedRecord
	PlayerA      string         `json:"player_a"`
	PlayerB      string         `json:"player_b"`
	RoundCount   int            `json:"round_count"`
	TotalPayoffA float64        `json:"total_payoff_a"`
	TotalPayoffB float64        `json:"total_payoff_b"`
	MeanPayoffA  float64        `json:"mean_payoff_a"`
	MeanPayoffB  float64        `json:"mean_payoff_b"`
	CooperationA float64        `json:"cooperation_a"`
	CooperationB float64        `json:"cooperation_b"`
	FlipsA       int            `json:"flips_a"`
	FlipsB       int            `json:"flips_b"`
	States       JointCounts    `json:"states"`
	Transitions  map[string]int `json:"transitions,omitempty"`
	Rounds       []RoundRecord  `json:"rounds,omitempty"`
}

type PairingRecord struct {
	Index         int            `json:"index"`
	PlayerA       string         `json:"player_a"`
	PlayerB       string         `json:"player_b"`
	Leg           int            `json:"leg"`
	Repetitions   int            `json:"repetitions"`
	Completed     int            `json:"completed"`
	MeanTotalA    float64        `json:"mean_total_a"`
	VarTotalA     float64        `json:"var_total_a"`
	MeanTotalB    float64        `json:"mean_total_b"`
	VarTotalB     float64        `json:"var_total_b"`
	MeanPerRoundA float64        `json:"mean_per_round_a"`
	MeanPerRoundB float64        `json:"mean_per_round_b"`
	CooperationA  float64        `json:"cooperation_a"`
	CooperationB  float64        `json:"cooperation_b"`
	MeanRounds    float64        `json:"mean_rounds"`
	States        JointCounts    `json:"states"`
	Transitions   map[string]int `json:"transitions,omitempty"`
}

type StandingRecord struct {
	Rank            int     `json:"rank"`
	Name            string  `json:"name"`
	MeanPayoff      float64 `json:"mean_payoff"`
	PayoffVariance  float64 `json:"payoff_variance"`
	CooperationRate float64 `json:"cooperation_rate"`
	TotalPayoff     float64 `json:"total_payoff"`
	Matches         int     `json:"matches"`
}

type FailureRecord struct {
	Pairing    int    `json:"pairing"`
	PlayerA    string `json:"player_a"`
	PlayerB    string `json:"player_b"`
	Repetition int    `json:"repetition"`
	Error      string `json:"error"`
}

type TournamentRecord struct {
	VersionedRecord
	RunID       string           `json:"run_id"`
	Mode        string           `json:"mode"`
	Seed        int64            `json:"seed"`
	Repetitions int              `json:"repetitions"`
	Noise       float64          `json:"noise"`
	Horizon     HorizonRecord    `json:"horizon"`
	Payoffs     PayoffRecord     `json:"payoffs"`
	Pairings    []PairingRecord  `json:"pairings"`
	Standings   []StandingRecord `json:"standings"`
	Failures    []FailureRecord  `json:"failures,omitempty"`
	Matches     []MatchRecord    `json:"matches,omitempty"`
}

type GenerationRecord struct {
	Generation  int                `json:"generation"`
	Shares      map[string]float64 `json:"shares"`
	Fitness     map[string]float64 `json:"fitness,omitempty"`
	MeanFitness float64            `json:"mean_fitness"`
	MaxDelta    float64            `json:"max_delta"`
	Mutants     float64            `json:"mutants"`
}

type TrajectoryRecord struct {
	VersionedRecord
	RunID          string             `json:"run_id"`
	Mode           string             `json:"mode"`
	Total          float64            `json:"total"`
	Metric         string             `json:"metric"`
	MutationRate   float64            `json:"mutation_rate"`
	MutationPolicy string             `json:"mutation_policy"`
	Seed           int64              `json:"seed"`
	Generations    []GenerationRecord `json:"generations"`
	Converged      bool               `json:"converged"`
	StopReason     string             `json:"stop_reason"`
}

type RunSummary struct {
	VersionedRecord
	RunID        string   `json:"run_id"`
	Kind         string   `json:"kind"`
	CreatedAtUTC string   `json:"created_at_utc"`
	Seed         int64    `json:"seed"`
	Entrants     []string `json:"entrants"`
	Leader       string   `json:"leader"`
	LeaderScore  float64  `json:"leader_score"`
	Generations  int      `json:"generations,omitempty"`
	Failures     int      `json:"failures,omitempty"`
}
