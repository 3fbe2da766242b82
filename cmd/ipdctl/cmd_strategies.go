package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the strategy catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			infos, err := s.client.Strategies()
			if err != nil {
				return err
			}
			if s.json {
				return writeJSON(cmd.OutOrStdout(), infos)
			}
			for _, info := range infos {
				if len(info.Params) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), info.Name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", info.Name, strings.Join(info.Params, ", "))
			}
			return nil
		},
	}
}
