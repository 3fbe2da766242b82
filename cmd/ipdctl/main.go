package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dilemma/internal/config"
	"dilemma/internal/logging"
	"dilemma/pkg/dilemma"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ipdctl",
		Short: "Iterated Prisoner's Dilemma simulator",
		Long: `ipdctl plays repeated Prisoner's Dilemma matches, round-robin tournaments
and replicator-dynamics evolutions over a catalog of classic strategies.

Runs are stored (memory or sqlite) and optionally written as JSON and CSV
artifacts under --out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Experiment YAML file (defaults plus IPD_* environment when empty)")
	flags.String("store", "", "Store backend: memory or sqlite (build default when empty)")
	flags.String("db-path", "dilemma.db", "SQLite database path")
	flags.String("out", "", "Directory for run artifacts")
	flags.Bool("json", false, "Output as JSON")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "auto", "Log format: auto, text, json")

	rootCmd.AddCommand(
		newStrategiesCmd(),
		newMatchCmd(),
		newTournamentCmd(),
		newEvolveCmd(),
		newRunsCmd(),
		newShowCmd(),
	)
	return rootCmd
}

// session bundles what every command needs: the loaded experiment and an
// initialized client.
type session struct {
	exp    config.Experiment
	client *dilemma.Client
	json   bool
}

func openSession(cmd *cobra.Command) (*session, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	storeKind, _ := flags.GetString("store")
	dbPath, _ := flags.GetString("db-path")
	outDir, _ := flags.GetString("out")
	jsonOut, _ := flags.GetBool("json")
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")

	exp, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(level, format, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	client, err := dilemma.New(dilemma.Options{
		StoreKind:    storeKind,
		DBPath:       dbPath,
		ArtifactsDir: outDir,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(cmd.Context()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &session{exp: exp, client: client, json: jsonOut}, nil
}

func (s *session) Close() error {
	return s.client.Close()
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// parseStrategySpec reads NAME or NAME:key=value:key=value.
func parseStrategySpec(raw string) (config.StrategySpec, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	spec := config.StrategySpec{Strategy: strings.TrimSpace(parts[0])}
	if spec.Strategy == "" {
		return config.StrategySpec{}, fmt.Errorf("empty strategy in %q", raw)
	}
	for _, kv := range parts[1:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return config.StrategySpec{}, fmt.Errorf("parameter %q in %q must be key=value", kv, raw)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return config.StrategySpec{}, fmt.Errorf("parameter %s in %q: %w", key, raw, err)
		}
		if spec.Params == nil {
			spec.Params = make(map[string]float64)
		}
		spec.Params[strings.TrimSpace(key)] = v
	}
	return spec, nil
}

func parseStrategyList(raw []string) ([]config.StrategySpec, error) {
	specs := make([]config.StrategySpec, 0, len(raw))
	for _, item := range raw {
		spec, err := parseStrategySpec(item)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// addGameFlags registers overrides shared by match, tournament and evolve.
func addGameFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("seed", 0, "Override the experiment seed")
	cmd.Flags().Int("rounds", 0, "Override the fixed number of rounds")
	cmd.Flags().Float64("continuation", 0, "Override the geometric continuation probability")
	cmd.Flags().Float64("noise", -1, "Override the execution noise epsilon")
}

func applyGameFlags(cmd *cobra.Command, exp *config.Experiment) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		exp.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("rounds") {
		exp.Rounds, _ = flags.GetInt("rounds")
		exp.Continuation = 0
	}
	if flags.Changed("continuation") {
		exp.Continuation, _ = flags.GetFloat64("continuation")
		if !flags.Changed("rounds") {
			exp.Rounds = 0
		}
	}
	if flags.Changed("noise") {
		exp.Noise, _ = flags.GetFloat64("noise")
	}
}

// addRosterFlags registers the roster and tournament overrides shared by
// tournament and evolve.
func addRosterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("strategies", nil, "Roster override, e.g. TFT,ALLD,RAND:p=0.3")
	cmd.Flags().Int("repetitions", 0, "Override repetitions per pairing")
	cmd.Flags().Int("workers", 0, "Override concurrent match workers")
}

func applyRosterFlags(cmd *cobra.Command, exp *config.Experiment) error {
	flags := cmd.Flags()
	if flags.Changed("strategies") {
		raw, _ := flags.GetStringSlice("strategies")
		specs, err := parseStrategyList(raw)
		if err != nil {
			return err
		}
		exp.Strategies = specs
	}
	if flags.Changed("repetitions") {
		exp.Tournament.Repetitions, _ = flags.GetInt("repetitions")
	}
	if flags.Changed("workers") {
		exp.Workers, _ = flags.GetInt("workers")
	}
	return nil
}
