package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dilemma/pkg/dilemma"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			kind, _ := cmd.Flags().GetString("kind")
			runs, err := s.client.Runs(cmd.Context(), dilemma.RunsRequest{Limit: limit, Kind: kind})
			if err != nil {
				return err
			}
			if s.json {
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tKIND\tCREATED\tSEED\tLEADER\tSCORE")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.3f\n", run.RunID, run.Kind, relativeTime(run.CreatedAtUTC), run.Seed, run.Leader, run.LeaderScore)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().String("kind", "", "Filter by kind: tournament, evolution, match")
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show a stored run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			req := dilemma.ShowRequest{}
			req.Latest, _ = cmd.Flags().GetBool("latest")
			if len(args) == 1 {
				req.RunID = args[0]
			}
			detail, err := s.client.Show(cmd.Context(), req)
			if err != nil {
				return err
			}
			if s.json {
				return writeJSON(cmd.OutOrStdout(), detail)
			}

			out := cmd.OutOrStdout()
			sum := detail.Summary
			fmt.Fprintf(out, "run %s (%s) created %s, seed %d\n", sum.RunID, sum.Kind, relativeTime(sum.CreatedAtUTC), sum.Seed)
			fmt.Fprintf(out, "entrants: %s\n", strings.Join(sum.Entrants, ", "))
			if t := detail.Tournament; t != nil {
				for _, st := range t.Standings {
					fmt.Fprintf(out, "  %2d. %-12s %.3f\n", st.Rank, st.Name, st.MeanPayoff)
				}
			}
			if tr := detail.Trajectory; tr != nil && len(tr.Generations) > 0 {
				last := tr.Generations[len(tr.Generations)-1]
				fmt.Fprintf(out, "generation %d, stop=%s\n", last.Generation, tr.StopReason)
				for _, name := range sum.Entrants {
					fmt.Fprintf(out, "  %-12s %.4f\n", name, last.Shares[name])
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("latest", false, "Show the most recent run")
	return cmd
}

func relativeTime(createdAtUTC string) string {
	ts, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(ts)
}
