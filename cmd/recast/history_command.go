package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"recast/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the conversion ledger",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func (c *commandContext) withHistory(fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open conversion history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded conversions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				records, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No conversions recorded")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					size := ""
					if rec.OutputBytes > 0 {
						size = humanize.Bytes(uint64(rec.OutputBytes))
					}
					detail := filepath.Base(rec.OutputPath)
					if rec.Status != history.StatusCompleted {
						detail = rec.ErrorMessage
					}
					rows = append(rows, []string{
						fmt.Sprintf("%d", rec.ID),
						humanize.Time(rec.CreatedAt),
						string(rec.Status),
						rec.Profile,
						filepath.Base(rec.SourcePath),
						detail,
						rec.Elapsed.Round(time.Second).String(),
						size,
					})
				}
				table := renderTable(
					[]string{"ID", "When", "Status", "Profile", "Source", "Result", "Elapsed", "Size"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show (0 for all)")
	return cmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the conversion ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:     %d\n", stats.Total)
				fmt.Fprintf(out, "Completed: %d\n", stats.Completed)
				fmt.Fprintf(out, "Failed:    %d\n", stats.Failed)
				fmt.Fprintf(out, "Canceled:  %d\n", stats.Canceled)
				fmt.Fprintf(out, "Output:    %s\n", humanize.Bytes(uint64(stats.OutputBytes)))
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all recorded conversions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(func(store *history.Store) error {
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared conversion history")
				return nil
			})
		},
	}
}
