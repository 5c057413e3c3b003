package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDiffCmd builds "diff <coord-a> <coord-b>": compares two published
// versions' sequence membership (spec.md §6). Each coordinate has the
// form <database>@<version-or-alias>; both must name the same database,
// since membership is compared within one database's version history.
func newDiffCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <coord-a> <coord-b>",
		Short: "Compare two published versions' sequence membership",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseA, refA := splitDatabaseAlias(args[0])
			databaseB, refB := splitDatabaseAlias(args[1])
			if databaseA != databaseB {
				return fmt.Errorf("diff compares two versions of the same database, got %q and %q", databaseA, databaseB)
			}
			if refA == "" {
				refA = "current"
			}
			if refB == "" {
				refB = "current"
			}

			versionA, err := resolveVersionRef(a, databaseA, refA)
			if err != nil {
				return err
			}
			versionB, err := resolveVersionRef(a, databaseB, refB)
			if err != nil {
				return err
			}

			result, err := a.repo.Diff(databaseA, versionA, versionB)
			if err != nil {
				return err
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			return printResult(cmd.OutOrStdout(), jsonOutput, result,
				fmt.Sprintf("added:    %v", result.Added),
				fmt.Sprintf("removed:  %v", result.Removed),
				fmt.Sprintf("modified: %v", result.Modified),
			)
		},
	}

	cmd.Flags().Bool("json", false, "print the result as JSON")

	return cmd
}
