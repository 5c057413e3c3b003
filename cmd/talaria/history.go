package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// versionSummary is one line of a "history" report: a published
// version, its manifest hash, and its sequence-time coordinate, ordered
// oldest first.
type versionSummary struct {
	VersionID    string `json:"version_id"`
	ManifestHash string `json:"manifest_hash"`
	SequenceTime string `json:"sequence_time"`
	Summary      string `json:"summary"`
}

// newHistoryCmd builds "history <database>": list every published
// version of a database oldest-first, the way the original CLI's
// version-history report walked a database's commit-like version chain.
// Unlike that report, this one has no markdown/html renderer — only the
// plain-text and --json forms every other subcommand already supports —
// since no templating library is wired anywhere else in this CLI.
func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <database>",
		Short: "List a database's published versions oldest-first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseID := args[0]

			records, err := a.repo.DatabaseVersions(databaseID)
			if err != nil {
				return err
			}
			sort.Slice(records, func(i, j int) bool {
				return records[i].SequenceTime.Before(records[j].SequenceTime)
			})

			summaries := make([]versionSummary, len(records))
			lines := make([]string, 0, len(records))
			for i, rec := range records {
				_, bareVersionID := splitDatabaseAlias(rec.VersionID)
				summaries[i] = versionSummary{
					VersionID:    bareVersionID,
					ManifestHash: rec.ManifestHash.String(),
					SequenceTime: rec.SequenceTime.Format("2006-01-02T15:04:05Z07:00"),
					Summary:      rec.Summary,
				}
				lines = append(lines, fmt.Sprintf("%s  %s  %s",
					summaries[i].SequenceTime, summaries[i].VersionID, summaries[i].Summary))
			}

			jsonOutput, _ := cmd.Flags().GetBool("json")
			return printResult(cmd.OutOrStdout(), jsonOutput, summaries, lines...)
		},
	}

	cmd.Flags().Bool("json", false, "print the result as JSON")

	return cmd
}
