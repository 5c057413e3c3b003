package main

import (
	"fmt"
	"strings"

	"gastrolog/internal/engineerrors"

	"github.com/spf13/cobra"
)

// newReduceCmd builds "reduce <database>[:profile]": re-express an
// already-published version as a reference set plus delta chains and
// publish the result as a new version (spec.md §6).
func newReduceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reduce <database>[:profile]",
		Short: "Reduce a published version into references and deltas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			databaseID, profile := splitProfile(args[0])
			if profile != "" {
				a.logger.Info("profile is informational; reduction parameters come from the configured reducer", "profile", profile)
			}
			targetRatio, _ := cmd.Flags().GetFloat64("target-ratio")
			if aligner, _ := cmd.Flags().GetString("aligner"); aligner != "" {
				a.logger.Info("--aligner is recorded for operator reference only; the engine performs no external alignment", "aligner", aligner)
			}
			jsonOutput, _ := cmd.Flags().GetBool("json")

			source, _ := cmd.Flags().GetString("source")
			if source == "" {
				source = "current"
			}
			versionID, err := resolveVersionRef(a, databaseID, source)
			if err != nil {
				return err
			}

			result, err := a.repo.Reduce(cmd.Context(), databaseID, versionID, targetRatio)
			if err != nil {
				return err
			}

			return printResult(cmd.OutOrStdout(), jsonOutput, result,
				fmt.Sprintf("version:    %s", result.VersionID),
				fmt.Sprintf("manifest:   %s", result.ManifestHash),
				fmt.Sprintf("references: %d", result.ReferenceCount),
				fmt.Sprintf("deltas:     %d", result.DeltaCount),
				fmt.Sprintf("compression ratio: %.2f", result.CompressionRatio),
			)
		},
	}

	cmd.Flags().String("source", "", "version or alias to reduce (default: current)")
	cmd.Flags().Float64("target-ratio", 0, "per-group reference retention ratio in (0,1]; 0 keeps the configured default")
	cmd.Flags().String("aligner", "", "target-aligner tag, informational: logged only, not recorded on the manifest")
	cmd.Flags().Bool("json", false, "print the result as JSON")

	return cmd
}

// splitProfile splits "<database>:<profile>" on the last colon. A bare
// database name (no colon) returns an empty profile.
func splitProfile(ref string) (database, profile string) {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// resolveVersionRef resolves name to a literal version id within
// databaseID: first as an alias ("current", "latest", or a custom
// alias), falling back to treating it as a literal version id if no
// alias by that name exists.
func resolveVersionRef(a *app, databaseID, name string) (string, error) {
	versionID, err := a.repo.ResolveAlias(databaseID, name)
	if err != nil {
		if engineerrors.Is(err, engineerrors.KindNotFound) {
			return name, nil
		}
		return "", err
	}
	return versionID, nil
}
