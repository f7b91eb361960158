package finalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"recast/internal/logging"
	"recast/internal/services/ffmpeg"
)

// FFmpegRemuxer rewrites an mp4 so the moov atom leads the file and playback
// can start before the download finishes. Streams are copied, not re-encoded.
type FFmpegRemuxer struct {
	client ffmpeg.Client
	logger *slog.Logger
}

var _ Remuxer = (*FFmpegRemuxer)(nil)

// NewFFmpegRemuxer builds a remuxer on top of an ffmpeg client.
func NewFFmpegRemuxer(client ffmpeg.Client, logger *slog.Logger) *FFmpegRemuxer {
	return &FFmpegRemuxer{
		client: client,
		logger: logging.NewComponentLogger(logger, "remux"),
	}
}

// Remux rewrites src into dest. The rewrite lands in a pending temp file
// that only replaces dest on success, so dest is never half-written.
func (r *FFmpegRemuxer) Remux(ctx context.Context, src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("stage remux output: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			r.logger.Debug("cleanup pending remux output", logging.Error(err))
		}
	}()

	// The pending file already exists and has no mp4 extension, hence -y
	// and the explicit container.
	args := []string{
		"-i", src,
		"-acodec", "copy",
		"-vcodec", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y", pending.Name(),
	}

	var toolErr error
	onEvent := func(ev ffmpeg.Event) {
		if ev.Kind == ffmpeg.EventError && toolErr == nil {
			toolErr = errors.New(ev.Line)
		}
	}
	if err := r.client.Convert(ctx, args, onEvent); err != nil {
		return err
	}
	if toolErr != nil {
		return fmt.Errorf("remux reported: %w", toolErr)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace remux output: %w", err)
	}
	return nil
}
