package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dilemma/pkg/dilemma"
)

func newTournamentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tournament",
		Short: "Run a tournament over the configured roster",
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
			if cmd.Flags().Changed("mode") {
				exp.Tournament.Mode, _ = cmd.Flags().GetString("mode")
			}

			summary, err := s.client.Tournament(cmd.Context(), dilemma.TournamentRequest{Experiment: exp})
			if err != nil {
				return err
			}
			if s.json {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (%s): %s matches, %s rounds, mean payoff %.3f, cooperation %.3f\n",
				summary.RunID, summary.Mode, humanize.Comma(int64(summary.Matches)), humanize.Comma(int64(summary.Rounds)),
				summary.MeanPayoff, summary.CooperationRate)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tSTRATEGY\tMEAN\tVARIANCE\tCOOP\tMATCHES")
			for _, st := range summary.Standings {
				fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.3f\t%.3f\t%d\n", st.Rank, st.Name, st.MeanPayoff, st.PayoffVariance, st.CooperationRate, st.Matches)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, f := range summary.Failures {
				fmt.Fprintf(out, "failed: pairing %d (%s vs %s) rep %d: %s\n", f.Pairing, f.PlayerA, f.PlayerB, f.Repetition, f.Error)
			}
			if summary.ArtifactsDir != "" {
				fmt.Fprintf(out, "artifacts: %s\n", summary.ArtifactsDir)
			}
			return nil
		},
	}
	addGameFlags(cmd)
	addRosterFlags(cmd)
	cmd.Flags().String("mode", "", "Pairing mode: round_robin, all_play_all, double_round_robin")
	return cmd
}
