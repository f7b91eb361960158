package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"recast/internal/staging"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging artifacts",
		Long: `Remove leftover temporary output from the staging directory.

A conversion that crashes or is killed leaves its .part file and .lock
behind. Artifacts older than --max-age are removed; lock files still held
by a running process are always kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
			if stagingDir == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Staging directory not configured")
				return nil
			}

			if dryRun {
				return printCleanCandidates(cmd, stagingDir, maxAge)
			}

			logger, err := ctx.newLogger(true)
			if err != nil {
				return err
			}
			result := staging.CleanStale(cmd.Context(), stagingDir, maxAge, logger)
			return printCleanResult(cmd, result)
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Remove artifacts older than this (0 removes everything not in use)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without removing it")
	return cmd
}

func printCleanCandidates(cmd *cobra.Command, stagingDir string, maxAge time.Duration) error {
	artifacts, err := staging.List(stagingDir)
	if err != nil {
		return fmt.Errorf("list staging artifacts: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	rows := make([][]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		if artifact.ModTime.After(cutoff) || artifact.Held {
			continue
		}
		age := time.Since(artifact.ModTime).Truncate(time.Minute)
		rows = append(rows, []string{artifact.Name, formatAge(age), humanize.Bytes(uint64(artifact.Size))})
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No stale staging artifacts")
		return nil
	}
	fmt.Fprint(out, renderTable(
		[]string{"Artifact", "Age", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
	fmt.Fprintf(out, "\nWould remove %d artifacts\n", len(rows))
	return nil
}

func printCleanResult(cmd *cobra.Command, result staging.CleanStaleResult) error {
	out := cmd.OutOrStdout()
	if len(result.Removed) == 0 && len(result.Errors) == 0 {
		fmt.Fprintln(out, "No stale staging artifacts")
		return nil
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Removed %d staging artifacts, %d errors\n", len(result.Removed), len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
		}
		return nil
	}
	fmt.Fprintf(out, "Removed %d staging artifacts\n", len(result.Removed))
	return nil
}

func formatAge(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
