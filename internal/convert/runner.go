package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"recast/internal/config"
	"recast/internal/fileutil"
	"recast/internal/finalize"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/media"
	"recast/internal/media/ffprobe"
	"recast/internal/profile"
	"recast/internal/services"
	"recast/internal/services/ffmpeg"
)

// Request describes one conversion.
type Request struct {
	Source    string
	Profile   profile.Profile
	OutputDir string // overrides the configured output directory

	// OnProgress, when set, receives progress snapshots. It is called from
	// the process's stream readers and must not block for long.
	OnProgress func(Progress)
}

// Result reports a committed conversion.
type Result struct {
	ConversionID string
	Source       media.Source
	Profile      string
	OutputPath   string
	Elapsed      time.Duration
	OutputBytes  int64
}

// ProbeFunc inspects a source file. ffprobe.Probe satisfies it.
type ProbeFunc func(ctx context.Context, binary, path string) (media.Source, error)

// Runner drives single conversions end to end: probe the source, spawn the
// tool, feed its diagnostic stream through the parser, commit the result,
// and record the run. Runners hold no per-conversion state and may serve
// concurrent Run calls.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    ffmpeg.Client
	committer *finalize.Committer
	store     *history.Store
	probe     ProbeFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithClient replaces the ffmpeg client.
func WithClient(client ffmpeg.Client) Option {
	return func(r *Runner) { r.client = client }
}

// WithProber replaces the source prober.
func WithProber(probe ProbeFunc) Option {
	return func(r *Runner) { r.probe = probe }
}

// WithCommitter replaces the finalize committer.
func WithCommitter(c *finalize.Committer) Option {
	return func(r *Runner) { r.committer = c }
}

// WithHistory records finished conversions in the given store.
func WithHistory(store *history.Store) Option {
	return func(r *Runner) { r.store = store }
}

// NewRunner wires a runner from configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "converter"),
		probe:  ffprobe.Probe,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = ffmpeg.NewCLI(cfg.FFmpegBinary())
	}
	if r.committer == nil {
		r.committer = finalize.NewCommitter(finalize.NewFFmpegRemuxer(r.client, logger), logger)
	}
	return r
}

// Run executes one conversion to completion. The temp file never survives a
// failure, and nothing is promoted to the final path unless the tool
// finished without reporting an error.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Profile == nil {
		return nil, services.Wrap(services.ErrValidation, "converter", "run", "profile required", nil)
	}
	if strings.TrimSpace(req.Source) == "" {
		return nil, services.Wrap(services.ErrValidation, "converter", "run", "source required", nil)
	}
	if _, err := os.Stat(req.Source); err != nil {
		return nil, services.Wrap(services.ErrValidation, "converter", "run", "source not readable", err)
	}

	p := req.Profile
	id := uuid.NewString()
	ctx = services.WithConversionID(ctx, id)
	ctx = services.WithProfile(ctx, p.ID())
	logger := logging.WithContext(ctx, r.logger)

	src := r.probeSource(ctx, logger, req.Source)

	outputName := p.OutputFileName(src)
	finalPath, err := r.resolveFinalPath(req, src, outputName)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.cfg.Paths.StagingDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "converter", "staging", "create staging dir", err)
	}
	tempPath := filepath.Join(r.cfg.Paths.StagingDir, fmt.Sprintf("%s.%s.part", outputName, shortID(id)))

	// One conversion per output name at a time; concurrent runs would race
	// for the same free final path.
	lock := flock.New(filepath.Join(r.cfg.Paths.StagingDir, outputName+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "converter", "lock", "acquire conversion lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrTransient, "converter", "lock",
			fmt.Sprintf("another conversion is already producing %s", outputName), nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release conversion lock", logging.Error(err))
		}
	}()

	args, err := p.Arguments(r.cfg, src, tempPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "converter", "arguments", "synthesize arguments", err)
	}

	if guess, ok := p.OutputSizeGuess(src); ok {
		logger.Debug("estimated output size", "bytes", guess)
	}
	logger.Info("starting conversion",
		logging.String(logging.FieldInput, src.Path),
		logging.String(logging.FieldOutput, finalPath),
	)

	track := newTracker(id, p.ID(), src.Path, finalPath, req.OnProgress)
	sampler := logging.NewProgressSampler(5)

	var mu sync.Mutex
	var toolErr error
	var sawSummary bool
	onEvent := func(ev ffmpeg.Event) {
		switch ev.Kind {
		case ffmpeg.EventDuration:
			track.setDuration(ev.Duration)
		case ffmpeg.EventProgress:
			snap := track.setSeconds(ev.Seconds)
			mu.Lock()
			shouldLog := sampler.ShouldLog(snap.Percent, "converting")
			mu.Unlock()
			if shouldLog {
				logger.Info("conversion progress",
					"percent", int(snap.Percent),
					"seconds", int(snap.Seconds),
				)
			}
		case ffmpeg.EventFinished:
			mu.Lock()
			sawSummary = true
			mu.Unlock()
		case ffmpeg.EventError:
			mu.Lock()
			if toolErr == nil {
				toolErr = errors.New(ev.Line)
			}
			mu.Unlock()
		}
	}

	runErr := r.client.Convert(ctx, args, onEvent)
	mu.Lock()
	failure := toolErr
	summary := sawSummary
	mu.Unlock()

	if ctx.Err() != nil {
		r.discardTemp(logger, tempPath)
		r.record(ctx, logger, history.Record{
			ConversionID: id,
			SourcePath:   src.Path,
			Profile:      p.ID(),
			Status:       history.StatusCanceled,
			ErrorMessage: ctx.Err().Error(),
			Elapsed:      track.snapshot().Elapsed,
		})
		logger.Info("conversion canceled", logging.String(logging.FieldInput, src.Path))
		return nil, ctx.Err()
	}

	if failure != nil || runErr != nil {
		r.discardTemp(logger, tempPath)
		cause := runErr
		if failure != nil {
			cause = failure
		}
		wrapped := services.Wrap(services.ErrExternalTool, "converter", "convert", "", cause)
		r.record(ctx, logger, history.Record{
			ConversionID: id,
			SourcePath:   src.Path,
			Profile:      p.ID(),
			Status:       history.StatusFailed,
			ErrorMessage: cause.Error(),
			Elapsed:      track.snapshot().Elapsed,
		})
		logger.Error("conversion failed", logging.Error(cause))
		return nil, wrapped
	}
	if !summary {
		logger.Debug("tool exited cleanly without a terminal summary line")
	}

	snap := track.finish()
	if err := r.committer.Commit(ctx, tempPath, finalPath, p); err != nil {
		r.record(ctx, logger, history.Record{
			ConversionID: id,
			SourcePath:   src.Path,
			Profile:      p.ID(),
			Status:       history.StatusFailed,
			ErrorMessage: err.Error(),
			Elapsed:      snap.Elapsed,
		})
		logger.Error("finalize failed", logging.Error(err))
		return nil, err
	}

	var outputBytes int64
	if info, err := os.Stat(finalPath); err == nil {
		outputBytes = info.Size()
	}
	r.record(ctx, logger, history.Record{
		ConversionID: id,
		SourcePath:   src.Path,
		OutputPath:   finalPath,
		Profile:      p.ID(),
		Status:       history.StatusCompleted,
		Elapsed:      snap.Elapsed,
		OutputBytes:  outputBytes,
	})
	logger.Info("conversion complete",
		logging.String(logging.FieldOutput, finalPath),
		"elapsed", snap.Elapsed.Round(time.Millisecond),
		"bytes", outputBytes,
	)

	return &Result{
		ConversionID: id,
		Source:       src,
		Profile:      p.ID(),
		OutputPath:   finalPath,
		Elapsed:      snap.Elapsed,
		OutputBytes:  outputBytes,
	}, nil
}

func (r *Runner) probeSource(ctx context.Context, logger *slog.Logger, path string) media.Source {
	src, err := r.probe(ctx, r.cfg.FFprobeBinary(), path)
	if err != nil {
		logger.Warn("probe failed, continuing without source metadata", logging.Error(err))
		return media.Source{Path: path}
	}
	logger.Debug("probed source",
		"duration", src.Duration,
		"width", src.Width,
		"height", src.Height,
	)
	return src
}

func (r *Runner) resolveFinalPath(req Request, src media.Source, outputName string) (string, error) {
	dir := strings.TrimSpace(req.OutputDir)
	if dir == "" {
		dir = r.cfg.Paths.OutputDir
	}
	if dir == "" {
		dir = filepath.Dir(src.Path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "converter", "output", "create output dir", err)
	}
	finalPath, err := fileutil.NextFreePath(filepath.Join(dir, outputName))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "converter", "output", "pick output name", err)
	}
	return finalPath, nil
}

func (r *Runner) discardTemp(logger *slog.Logger, tempPath string) {
	if err := os.Remove(tempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to remove temporary output", "temp", tempPath, logging.Error(err))
	}
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, rec history.Record) {
	if r.store == nil {
		return
	}
	if _, err := r.store.Add(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("failed to record conversion history", logging.Error(err))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
