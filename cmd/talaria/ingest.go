package main

import (
	"fmt"
	"os"
	"time"

	"gastrolog/internal/fasta"

	"github.com/spf13/cobra"
)

// newIngestCmd builds "ingest <fasta> --as <provider>/<dataset>": parse a
// FASTA file, partition its sequences into content-addressed chunks, and
// publish the result as a new version (spec.md §6).
func newIngestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <fasta>",
		Short: "Ingest a FASTA file into a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			as, _ := cmd.Flags().GetString("as")
			if as == "" {
				return fmt.Errorf("--as <provider>/<dataset> is required")
			}
			if requestedVersion, _ := cmd.Flags().GetString("version"); requestedVersion != "" {
				a.logger.Info("--version is informational; ingest mints its own version id", "requested", requestedVersion)
			}
			taxonomyVersion, _ := cmd.Flags().GetString("taxonomy-version")
			jsonOutput, _ := cmd.Flags().GetBool("json")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			sequences, err := fasta.Parse(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			result, err := a.repo.Ingest(cmd.Context(), as, sequences, time.Now(), taxonomyVersion)
			if err != nil {
				return err
			}

			lines := []string{
				fmt.Sprintf("version:   %s", result.VersionID),
				fmt.Sprintf("manifest:  %s", result.ManifestHash),
				fmt.Sprintf("chunks:    %d", result.ChunkCount),
				fmt.Sprintf("sequences: %d", len(sequences)),
			}
			if len(result.Discrepancies) > 0 {
				lines = append(lines, fmt.Sprintf("discrepancies: %d", len(result.Discrepancies)))
			}
			return printResult(cmd.OutOrStdout(), jsonOutput, result, lines...)
		},
	}

	cmd.Flags().String("as", "", "destination <provider>/<dataset> (required)")
	cmd.Flags().String("version", "", "informational version tag (version ids are minted internally)")
	cmd.Flags().String("taxonomy-version", "", "taxonomy version id to bind this ingest to and check discrepancies against")
	cmd.Flags().Bool("json", false, "print the result as JSON")

	return cmd
}
