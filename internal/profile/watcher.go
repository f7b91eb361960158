package profile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"recast/internal/logging"
)

const reloadDebounce = 500 * time.Millisecond

// Handle owns the live registry and rebuilds it when profile bundles change
// on disk. Lookups go through Registry(), which always returns the newest
// complete catalog; a failed rebuild keeps the previous one.
type Handle struct {
	mu      sync.RWMutex
	current *Registry

	base    *slog.Logger
	logger  *slog.Logger
	dir     string
	watcher *fsnotify.Watcher
}

// NewHandle builds the initial catalog from the builtins plus the bundles
// under dir. An empty dir means builtins only.
func NewHandle(dir string, logger *slog.Logger) (*Handle, error) {
	h := &Handle{
		base:   logger,
		logger: logging.NewComponentLogger(logger, "profiles"),
		dir:    dir,
	}
	if err := h.Reload(); err != nil {
		return nil, err
	}
	return h, nil
}

// Registry returns the current catalog snapshot.
func (h *Handle) Registry() *Registry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload rebuilds the catalog from scratch and swaps it in atomically.
func (h *Handle) Reload() error {
	reg := NewRegistry(h.base)
	if err := reg.Startup(h.dir); err != nil {
		return err
	}
	h.mu.Lock()
	h.current = reg
	h.mu.Unlock()
	h.logger.Debug("profile catalog rebuilt", "profiles", reg.Len())
	return nil
}

// Watch starts rebuilding the catalog whenever a bundle under the profile
// directory is written, created, renamed, or removed. Events are debounced
// so editors that write in bursts trigger a single rebuild. The watcher
// stops when ctx is done.
func (h *Handle) Watch(ctx context.Context) error {
	if h.dir == "" {
		return fmt.Errorf("no profile directory configured")
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(h.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch profile dir: %w", err)
	}
	h.watcher = watcher
	h.logger.Info("watching profile bundles", "dir", h.dir)
	go h.watchLoop(ctx)
	return nil
}

func (h *Handle) watchLoop(ctx context.Context) {
	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".toml") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			h.logger.Debug("profile bundle changed", "bundle", event.Name, "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(); err != nil {
					h.logger.Error("profile reload failed", logging.Error(err))
				}
			})
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error("profile watcher error", logging.Error(err))
		}
	}
}

// Close stops the watcher if one is running.
func (h *Handle) Close() error {
	if h.watcher == nil {
		return nil
	}
	return h.watcher.Close()
}
