package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"dilemma/pkg/dilemma"
)

func newEvolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evolve",
		Short: "Run replicator dynamics over the configured roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			exp := s.exp
			applyGameFlags(cmd, &exp)
			if err := applyRosterFlags(cmd, &exp); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("generations") {
				exp.Evolution.Generations, _ = flags.GetInt("generations")
			}
			if flags.Changed("mutation-rate") {
				exp.Evolution.MutationRate, _ = flags.GetFloat64("mutation-rate")
			}
			if flags.Changed("population-mode") {
				exp.Evolution.Mode, _ = flags.GetString("population-mode")
			}
			if flags.Changed("metric") {
				exp.Evolution.Metric, _ = flags.GetString("metric")
			}

			summary, err := s.client.Evolve(cmd.Context(), dilemma.EvolveRequest{Experiment: exp})
			if err != nil {
				return err
			}
			if s.json {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (%s): %d generations, stop=%s, dominant %s at %.4f\n",
				summary.RunID, summary.Mode, summary.Generations, summary.StopReason, summary.Dominant, summary.DominantShare)
			names := make([]string, 0, len(summary.Final))
			for name := range summary.Final {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				if summary.Final[names[i]] != summary.Final[names[j]] {
					return summary.Final[names[i]] > summary.Final[names[j]]
				}
				return names[i] < names[j]
			})
			for _, name := range names {
				fmt.Fprintf(out, "  %-12s %.4f\n", name, summary.Final[name])
			}
			if summary.ArtifactsDir != "" {
				fmt.Fprintf(out, "artifacts: %s\n", summary.ArtifactsDir)
			}
			return nil
		},
	}
	addGameFlags(cmd)
	addRosterFlags(cmd)
	cmd.Flags().Int("generations", 0, "Override the number of generations")
	cmd.Flags().Float64("mutation-rate", 0, "Override the mutation rate")
	cmd.Flags().String("population-mode", "", "Population mode: frequency or count")
	cmd.Flags().String("metric", "", "Fitness metric: mean_payoff, median_payoff, cooperation_rate")
	return cmd
}
