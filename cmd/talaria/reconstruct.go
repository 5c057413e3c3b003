package main

import (
	"strings"

	"gastrolog/internal/fasta"

	"github.com/spf13/cobra"
)

// newReconstructCmd builds "reconstruct <database>[:profile] [--ids <list>]":
// decode a version's chunks back into FASTA sequences (spec.md §6).
func newReconstructCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconstruct <database>[:profile]",
		Short: "Reconstruct sequences from a published version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseID, profile := splitProfile(args[0])
			if profile != "" {
				a.logger.Info("profile is informational", "profile", profile)
			}

			source, _ := cmd.Flags().GetString("source")
			if source == "" {
				source = "current"
			}
			versionID, err := resolveVersionRef(a, databaseID, source)
			if err != nil {
				return err
			}

			idsFlag, _ := cmd.Flags().GetString("ids")
			var ids []string
			if idsFlag != "" {
				ids = strings.Split(idsFlag, ",")
			}

			sequences, err := a.repo.ReconstructSequences(databaseID, versionID, ids, a.cfg.Reducer.MaxChainDepth)
			if err != nil {
				return err
			}

			return fasta.Write(cmd.OutOrStdout(), sequences)
		},
	}

	cmd.Flags().String("source", "", "version or alias to reconstruct from (default: current)")
	cmd.Flags().String("ids", "", "comma-separated sequence ids to reconstruct (default: all)")

	return cmd
}
