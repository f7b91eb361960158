package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"recast/internal/config"
	"recast/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var estimates bool

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Inspect a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			result, err := ffprobe.Inspect(cmd.Context(), cfg.FFprobeBinary(), path)
			if err != nil {
				return err
			}
			src := result.Source(path)

			if asJSON {
				payload := map[string]any{
					"path":             path,
					"container":        result.Format.FormatName,
					"duration_seconds": src.Duration,
					"width":            src.Width,
					"height":           src.Height,
					"size_bytes":       result.SizeBytes(),
					"bit_rate":         result.BitRate(),
					"video_streams":    result.VideoStreamCount(),
					"audio_streams":    result.AudioStreamCount(),
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:      %s\n", path)
			if result.Format.FormatName != "" {
				fmt.Fprintf(out, "Container: %s\n", result.Format.FormatName)
			}
			if src.HasDuration() {
				fmt.Fprintf(out, "Duration:  %s\n", (time.Duration(src.Duration * float64(time.Second))).Round(10*time.Millisecond))
			} else {
				fmt.Fprintln(out, "Duration:  unknown")
			}
			if src.HasDimensions() {
				fmt.Fprintf(out, "Video:     %dx%d (%d stream(s))\n", src.Width, src.Height, result.VideoStreamCount())
			} else {
				fmt.Fprintln(out, "Video:     none")
			}
			fmt.Fprintf(out, "Audio:     %d stream(s)\n", result.AudioStreamCount())
			if size := result.SizeBytes(); size > 0 {
				fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(size)))
			}
			if rate := result.BitRate(); rate > 0 {
				fmt.Fprintf(out, "Bitrate:   %d kb/s\n", rate/1000)
			}

			if !estimates {
				return nil
			}

			logger, err := ctx.newLogger(false)
			if err != nil {
				return err
			}
			handle, err := ctx.profileHandle(logger)
			if err != nil {
				return err
			}
			defer handle.Close()

			rows := make([][]string, 0)
			for _, p := range handle.Registry().List() {
				size := "-"
				if guess, ok := p.OutputSizeGuess(src); ok {
					size = humanize.Bytes(uint64(guess))
				}
				rows = append(rows, []string{p.ID(), p.OutputFileName(src), size})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(
				[]string{"Profile", "Output Name", "Estimated Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&estimates, "estimates", false, "Show the projected output name and size for every profile")
	return cmd
}
