package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/gav/internal/orchestrator"
)

var (
	gatherBudget     int
	gatherPaths      []string
	gatherGlobs      []string
	gatherMaxSources int
	gatherJSON       bool
)

func init() {
	rootCmd.AddCommand(gatherCmd)
	gatherCmd.Flags().IntVarP(&gatherBudget, "budget", "b", 4000, "token budget")
	gatherCmd.Flags().StringSliceVarP(&gatherPaths, "path", "p", nil, "paths to include (repeatable)")
	gatherCmd.Flags().StringSliceVarP(&gatherGlobs, "glob", "g", nil, "restrict workspace search to matching paths (repeatable)")
	gatherCmd.Flags().IntVar(&gatherMaxSources, "max-sources", 0, "maximum number of sources, 0 for no limit")
	gatherCmd.Flags().BoolVar(&gatherJSON, "json", false, "print the bundle as JSON")
}

var gatherCmd = &cobra.Command{
	Use:   "gather <intent>...",
	Short: "Gather context for an intent",
	Long: `Gather the highest-scoring workspace context for an intent within a
token budget.

Examples:
  # Context for a bug fix, at most 2000 tokens
  gav gather --budget 2000 fix cache eviction race

  # Always include a file, search only Go sources
  gav gather -p internal/cache/cache.go -g '**/*.go' tighten TTL handling`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGather,
}

func runGather(cmd *cobra.Command, args []string) error {
	reg, err := openRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, reg)

	req := orchestrator.Request{
		Intent: strings.Join(args, " "),
		Budget: gatherBudget,
		Hints: orchestrator.Hints{
			Paths:      gatherPaths,
			Globs:      gatherGlobs,
			MaxSources: gatherMaxSources,
		},
	}
	if err := req.Validate(); err != nil {
		return err
	}

	bundle := reg.Gather().Gather(cmd.Context(), req, debug)
	if bundle == nil {
		return errors.New("context unavailable")
	}

	if gatherJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(bundle)
	}

	out := cmd.OutOrStdout()
	for _, s := range bundle.Sources {
		fmt.Fprintf(out, "%s  score=%.1f tokens=%d\n", s.Path, s.Score, s.EstimatedCost)
		for _, r := range s.Reasons {
			fmt.Fprintf(out, "    %s\n", r)
		}
	}
	fmt.Fprintf(out, "%d sources, %d/%d tokens, strategy %s\n",
		len(bundle.Sources), bundle.Metadata.TokensUsed, req.Budget, bundle.Metadata.Strategy)
	for _, f := range bundle.Metadata.Faults {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", f)
	}
	return nil
}
