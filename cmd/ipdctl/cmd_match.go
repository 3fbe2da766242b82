package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dilemma/pkg/dilemma"
)

func newMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match [A] [B]",
		Short: "Play a single match between two strategies",
		Long: `Play one repeated game. Strategies are NAME or NAME:key=value:...;
without arguments the first two configured strategies play.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			exp := s.exp
			applyGameFlags(cmd, &exp)
			req := dilemma.MatchRequest{Experiment: exp}
			if len(args) > 0 {
				if req.A, err = parseStrategySpec(args[0]); err != nil {
					return err
				}
			}
			if len(args) > 1 {
				if req.B, err = parseStrategySpec(args[1]); err != nil {
					return err
				}
			}
			if err := exp.Validate(); err != nil {
				return err
			}

			summary, err := s.client.Match(cmd.Context(), req)
			if err != nil {
				return err
			}
			if s.json {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			rec := summary.Record
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %s vs %s over %s rounds\n", summary.RunID, rec.PlayerA, rec.PlayerB, humanize.Comma(int64(rec.RoundCount)))
			fmt.Fprintf(out, "  %-12s total %8.2f  mean %.3f  coop %.3f  flips %d\n", rec.PlayerA, rec.TotalPayoffA, rec.MeanPayoffA, rec.CooperationA, rec.FlipsA)
			fmt.Fprintf(out, "  %-12s total %8.2f  mean %.3f  coop %.3f  flips %d\n", rec.PlayerB, rec.TotalPayoffB, rec.MeanPayoffB, rec.CooperationB, rec.FlipsB)
			fmt.Fprintf(out, "  states CC=%d CD=%d DC=%d DD=%d\n", rec.States.CC, rec.States.CD, rec.States.DC, rec.States.DD)
			if summary.ArtifactsDir != "" {
				fmt.Fprintf(out, "artifacts: %s\n", summary.ArtifactsDir)
			}
			return nil
		},
	}
	addGameFlags(cmd)
	return cmd
}
