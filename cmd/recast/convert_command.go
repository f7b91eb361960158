package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"recast/internal/config"
	"recast/internal/convert"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/profile"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var profileFlag string
	var outputDir string
	var parallel int
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Convert media files using a named profile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if parallel < 1 {
				parallel = 1
			}

			// A live bar owns the terminal, so structured logs move to the
			// log file for interactive runs.
			interactive := !noProgress && parallel == 1 && isTerminal(os.Stderr)
			logger, err := ctx.newLogger(interactive)
			if err != nil {
				return err
			}

			handle, err := ctx.profileHandle(logger)
			if err != nil {
				return err
			}
			defer handle.Close()
			if cfg.Profiles.Watch {
				if err := handle.Watch(cmd.Context()); err != nil {
					logger.Warn("profile watcher unavailable", logging.Error(err))
				}
			}

			id := profile.Identifier(profileFlag)
			if _, err := handle.Registry().ByID(id); err != nil {
				return fmt.Errorf("unknown profile %q (run 'recast profiles list')", profileFlag)
			}

			var store *history.Store
			if cfg.History.Enabled {
				store, err = history.Open(cfg)
				if err != nil {
					logger.Warn("conversion history unavailable", logging.Error(err))
				} else {
					defer store.Close()
				}
			}

			var opts []convert.Option
			if store != nil {
				opts = append(opts, convert.WithHistory(store))
			}
			runner := convert.NewRunner(cfg, logger, opts...)

			inputs := make([]string, 0, len(args))
			for _, arg := range args {
				expanded, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				inputs = append(inputs, expanded)
			}

			batch := &conversionBatch{
				runner:    runner,
				handle:    handle,
				profileID: id,
				outputDir: outputDir,
			}
			if parallel == 1 {
				return batch.runSequential(cmd, inputs, interactive)
			}
			return batch.runParallel(cmd, inputs, parallel)
		},
	}

	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "Profile name or identifier")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for converted files (defaults to configuration, then the source directory)")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 1, "Number of conversions to run at once")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the interactive progress bar")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

type conversionBatch struct {
	runner    *convert.Runner
	handle    *profile.Handle
	profileID string
	outputDir string
}

// lookup resolves the profile per input so bundle edits picked up by the
// watcher apply to the remainder of a long batch.
func (b *conversionBatch) lookup() (profile.Profile, error) {
	return b.handle.Registry().ByID(b.profileID)
}

func (b *conversionBatch) runSequential(cmd *cobra.Command, inputs []string, interactive bool) error {
	out := cmd.OutOrStdout()
	failed := 0
	for _, input := range inputs {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		p, err := b.lookup()
		if err != nil {
			return err
		}

		req := convert.Request{Source: input, Profile: p, OutputDir: b.outputDir}
		var bar *conversionBar
		if interactive {
			bar = newConversionBar(cmd.ErrOrStderr(), fmt.Sprintf("converting %s", filepath.Base(input)))
			req.OnProgress = bar.update
		}

		result, err := b.runner.Run(cmd.Context(), req)
		if bar != nil {
			bar.close()
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed++
			fmt.Fprintf(out, "Failed %s: %v\n", input, err)
			continue
		}
		printConversionResult(out, input, result)
	}
	return batchOutcome(out, len(inputs), failed)
}

func (b *conversionBatch) runParallel(cmd *cobra.Command, inputs []string, parallel int) error {
	out := cmd.OutOrStdout()

	var mu sync.Mutex
	failed := 0
	var wg sync.WaitGroup
	sem := make(chan struct{}, parallel)

	for _, input := range inputs {
		if err := cmd.Context().Err(); err != nil {
			break
		}
		p, err := b.lookup()
		if err != nil {
			return err
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(input string, p profile.Profile) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := b.runner.Run(cmd.Context(), convert.Request{
				Source:    input,
				Profile:   p,
				OutputDir: b.outputDir,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				fmt.Fprintf(out, "Failed %s: %v\n", input, err)
				return
			}
			printConversionResult(out, input, result)
		}(input, p)
	}
	wg.Wait()

	if err := cmd.Context().Err(); err != nil {
		return err
	}
	return batchOutcome(out, len(inputs), failed)
}

func printConversionResult(out io.Writer, input string, result *convert.Result) {
	fmt.Fprintf(out, "Converted %s -> %s (%s in %s)\n",
		input, result.OutputPath,
		humanize.Bytes(uint64(result.OutputBytes)),
		result.Elapsed.Round(100*time.Millisecond),
	)
}

func batchOutcome(out io.Writer, total, failed int) error {
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, total)
	}
	if total > 1 {
		fmt.Fprintf(out, "Converted %d files\n", total)
	}
	return nil
}
