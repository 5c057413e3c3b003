package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newQueryCmd builds "query <database>@<version-or-alias>": resolve a
// database coordinate and print its manifest summary (spec.md §6).
func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <database>@<version-or-alias>",
		Short: "Resolve a database coordinate and print its manifest summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseID, name := splitDatabaseAlias(args[0])
			if name == "" {
				name = "current"
			}

			outcome, err := a.repo.Query(databaseID, name)
			if err != nil {
				return err
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			lines := []string{
				fmt.Sprintf("version:     %s", outcome.VersionID),
				fmt.Sprintf("manifest:    %s", outcome.ManifestHash),
				fmt.Sprintf("created:     %s", outcome.Manifest.CreatedAt.Format("2006-01-02T15:04:05Z07:00")),
				fmt.Sprintf("entries:     %d", len(outcome.Manifest.Entries)),
				fmt.Sprintf("reduced:     %t", outcome.Manifest.ReductionApplied),
				fmt.Sprintf("references:  %d", outcome.Manifest.ReferenceCount),
				fmt.Sprintf("deltas:      %d", outcome.Manifest.DeltaCount),
			}
			if outcome.Manifest.ReductionApplied {
				lines = append(lines, fmt.Sprintf("compression: %.2f", outcome.Manifest.CompressionRatio))
			}
			if !outcome.Manifest.TaxonomyManifestHash.IsZero() {
				lines = append(lines, fmt.Sprintf("taxonomy:    %s", outcome.Manifest.TaxonomyManifestHash))
			}
			if len(outcome.Manifest.Discrepancies) > 0 {
				lines = append(lines, fmt.Sprintf("discrepancies: %d", len(outcome.Manifest.Discrepancies)))
			}
			return printResult(cmd.OutOrStdout(), jsonOutput, outcome, lines...)
		},
	}

	cmd.Flags().Bool("json", false, "print the result as JSON")

	return cmd
}
