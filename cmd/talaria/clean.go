package main

import (
	"fmt"

	"gastrolog/internal/engineerrors"

	"github.com/spf13/cobra"
)

// newCleanCmd builds "clean all": sweep every chunk unreferenced by any
// live manifest across every database this repository serves. Per-database
// cleaning is rejected outright, since chunks are shared by content
// address across databases and a per-database sweep could delete a chunk
// another database still references (spec.md §6).
func newCleanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean all",
		Short: "Garbage-collect chunks unreferenced by any live manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "all" {
				return engineerrors.New(engineerrors.KindUser,
					"clean only supports \"all\"; per-database clean is rejected as unsafe since chunks are shared by content address across databases")
			}

			result, err := a.repo.GarbageCollect(cmd.Context())
			if err != nil {
				return err
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			return printResult(cmd.OutOrStdout(), jsonOutput, result,
				fmt.Sprintf("reachable: %d", result.Reachable),
				fmt.Sprintf("removed:   %d", result.Removed),
			)
		},
	}

	cmd.Flags().Bool("json", false, "print the result as JSON")

	return cmd
}
