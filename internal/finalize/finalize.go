package finalize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"recast/internal/fileutil"
	"recast/internal/logging"
	"recast/internal/profile"
)

// Remuxer rewrites a finished encode into its final container. It must be
// atomic on failure: dest is never left partially written and src is never
// consumed.
type Remuxer interface {
	Remux(ctx context.Context, src, dest string) error
}

// Error is the only error type that crosses the finalize boundary. It wraps
// the remux or move failure; cleanup failures are logged, never carried.
type Error struct {
	Op  string // "remux" or "move"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("finalize %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Committer promotes temporary conversion outputs to their final paths.
type Committer struct {
	logger  *slog.Logger
	remuxer Remuxer
}

// NewCommitter builds a committer. The remuxer may be nil when no profile in
// use needs one; committing an mp4 format profile without it fails.
func NewCommitter(remuxer Remuxer, logger *slog.Logger) *Committer {
	return &Committer{
		logger:  logging.NewComponentLogger(logger, "finalize"),
		remuxer: remuxer,
	}
}

// needsRemux reports whether the profile's output gets a faststart rewrite
// instead of a plain move. Device mp4s are moved as-is.
func needsRemux(p profile.Profile) bool {
	return p.MediaType() == profile.MediaTypeFormat && p.TargetExtension() == "mp4"
}

// Commit makes tempPath the authoritative output at finalPath. Format mp4
// profiles route through the remuxer; everything else is an atomic move. On
// failure the temp file is removed and the primary cause is returned as an
// *Error; a removal failure is logged and never masks it. Re-committing
// after a successful run is a no-op.
func (c *Committer) Commit(ctx context.Context, tempPath, finalPath string, p profile.Profile) error {
	if _, err := os.Lstat(tempPath); errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Lstat(finalPath); err == nil {
			c.logger.Debug("output already committed", "output", finalPath)
			return nil
		}
	}

	var pending *Error
	removeTemp := false
	if needsRemux(p) {
		// The remuxer copies rather than moves, so the temp file is dead
		// after this branch whether or not the rewrite worked.
		removeTemp = true
		c.logger.Debug("rewriting output for streaming", "temp", tempPath, "output", finalPath)
		if err := c.remux(ctx, tempPath, finalPath); err != nil {
			pending = &Error{Op: "remux", Err: err}
		}
	} else {
		if err := move(tempPath, finalPath); err != nil {
			pending = &Error{Op: "move", Err: err}
			removeTemp = true
		}
	}

	if removeTemp {
		if err := os.Remove(tempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to remove temporary output", "temp", tempPath, logging.Error(err))
		}
	}
	if pending != nil {
		return pending
	}
	return nil
}

func (c *Committer) remux(ctx context.Context, src, dest string) error {
	if c.remuxer == nil {
		return errors.New("no remuxer configured")
	}
	return c.remuxer.Remux(ctx, src, dest)
}

func move(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return fileutil.MoveFile(src, dest)
}
