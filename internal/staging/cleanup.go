// Package staging manages the scratch directory conversions write their
// in-flight output to. A finished run leaves nothing behind; a crashed one
// leaves the run's .part file and its advisory .lock, which CleanStale
// sweeps once they are old enough.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"recast/internal/logging"
)

// Artifact is one conversion leftover in the staging directory.
type Artifact struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Held    bool
}

// CleanStaleResult contains the outcome of a stale artifact cleanup.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs an artifact path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

func isArtifact(name string) bool {
	return strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".lock")
}

// List returns the conversion artifacts currently in the staging directory.
// Held is set on lock files some live process still holds.
func List(stagingDir string) ([]Artifact, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(stagingDir, entry.Name())
		artifacts = append(artifacts, Artifact{
			Path:    path,
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Held:    strings.HasSuffix(entry.Name(), ".lock") && lockHeld(path),
		})
	}
	return artifacts, nil
}

// lockHeld probes the advisory lock without keeping it.
func lockHeld(path string) bool {
	probe := flock.New(path)
	locked, err := probe.TryLock()
	if err != nil || !locked {
		return true
	}
	_ = probe.Unlock()
	return false
}

// CleanStale removes staging artifacts older than maxAge. An in-flight
// conversion keeps its .part file's mtime fresh, so age alone separates live
// output from crash leftovers; lock files are additionally skipped while
// some process holds them.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	artifacts, err := List(stagingDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, artifact := range artifacts {
		if ctx.Err() != nil {
			return result
		}
		if artifact.ModTime.After(cutoff) || artifact.Held {
			continue
		}
		if err := os.Remove(artifact.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: artifact.Path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale staging artifact",
					logging.String("path", artifact.Path),
					logging.Error(err),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, artifact.Path)
		if logger != nil {
			logger.Info("removed stale staging artifact",
				logging.String("path", artifact.Path),
				logging.Duration("age", time.Since(artifact.ModTime)),
			)
		}
	}

	return result
}
