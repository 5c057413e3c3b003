package main

import (
	"encoding/json"
	"fmt"
	"io"
)

// printResult writes v to w as either JSON or a simple "key: value" listing,
// depending on jsonOutput. Subcommands use this for their final result so
// scripts can consume --json output without parsing log text.
func printResult(w io.Writer, jsonOutput bool, v any, lines ...string) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// splitDatabaseAlias splits "<database>@<version-or-alias>" into its two
// parts. If ref carries no "@", version is returned empty so callers can
// fall back to the "current" alias.
func splitDatabaseAlias(ref string) (database, version string) {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '@' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, ""
}
