package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"recast/internal/convert"
	"recast/internal/history"
	"recast/internal/logging"
	"recast/internal/media"
	"recast/internal/profile"
	"recast/internal/services"
	"recast/internal/services/ffmpeg"
	"recast/internal/testsupport"
)

// scriptedClient stands in for the ffmpeg process. It replays canned
// diagnostic lines through the status grammar, writes payload bytes to the
// last argument (the output path), and optionally fails or blocks.
type scriptedClient struct {
	lines   []string
	payload string
	err     error
	block   bool

	mu   sync.Mutex
	argv [][]string
}

func (c *scriptedClient) Convert(ctx context.Context, args []string, onEvent func(ffmpeg.Event)) error {
	c.mu.Lock()
	call := make([]string, len(args))
	copy(call, args)
	c.argv = append(c.argv, call)
	c.mu.Unlock()

	output := args[len(args)-1]
	if c.block {
		if err := os.WriteFile(output, []byte("partial"), 0o644); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	}

	for _, line := range c.lines {
		if event, ok := ffmpeg.ParseStatusLine(line); ok && onEvent != nil {
			onEvent(event)
		}
	}
	if c.err != nil {
		return c.err
	}
	if c.payload != "" {
		if err := os.WriteFile(output, []byte(c.payload), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (c *scriptedClient) calls() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]string, len(c.argv))
	copy(out, c.argv)
	return out
}

var successLines = []string{
	"  Duration: 00:01:50.00, start: 0.000000, bitrate: 1204 kb/s",
	"frame=  100 fps= 25 q=28.0 size=     512kB time=00:00:55.00 bitrate= 500.0kbits/s",
	"frame=  200 fps= 25 q=28.0 Lsize=    1024kB time=00:01:50.00 bitrate= 500.0kbits/s",
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	testsupport.WriteFile(t, path, 64)
	return path
}

func staticProber(src media.Source) convert.ProbeFunc {
	return func(_ context.Context, _, path string) (media.Source, error) {
		src.Path = path
		return src, nil
	}
}

func webmProfile(t *testing.T) profile.Profile {
	t.Helper()
	p, err := profile.NewFFmpegProfile("WebM HD", profile.MediaTypeFormat,
		"-f webm -vcodec libvpx -acodec libvorbis -ab 160000 -crf 22 -s {ssize}",
		profile.WithExtension("webm"),
		profile.WithTargetBox(1280, 720),
		profile.WithBitrate(2_160_000),
	)
	if err != nil {
		t.Fatalf("build profile: %v", err)
	}
	return p
}

func mp3Profile(t *testing.T) profile.Profile {
	t.Helper()
	p, err := profile.NewFFmpegProfile("MP3", profile.MediaTypeFormat,
		"-f mp3 -vn -ac 2 -ab 192k",
		profile.WithExtension("mp3"),
		profile.WithBitrate(192_000),
	)
	if err != nil {
		t.Fatalf("build profile: %v", err)
	}
	return p
}

func partFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.part"))
	if err != nil {
		t.Fatalf("glob staging dir: %v", err)
	}
	return matches
}

func TestRunCompletesConversion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.FFmpeg.ExtraArgs = []string{"-threads", "2"}
	store := testsupport.MustOpenHistory(t, cfg)
	client := &scriptedClient{lines: successLines, payload: "converted output"}

	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110, Width: 1920, Height: 1080})),
		convert.WithHistory(store),
	)

	var snaps []convert.Progress
	source := writeSource(t, "clip.mkv")
	result, err := runner.Run(context.Background(), convert.Request{
		Source:  source,
		Profile: webmProfile(t),
		OnProgress: func(p convert.Progress) {
			snaps = append(snaps, p)
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	wantOutput := filepath.Join(cfg.Paths.OutputDir, "clip.webmhd.webm")
	if result.OutputPath != wantOutput {
		t.Fatalf("output path: got %q want %q", result.OutputPath, wantOutput)
	}
	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "converted output" {
		t.Fatalf("unexpected output content: %q", data)
	}
	if result.OutputBytes != int64(len(data)) {
		t.Fatalf("output bytes: got %d want %d", result.OutputBytes, len(data))
	}
	if result.ConversionID == "" {
		t.Fatal("expected a conversion id")
	}

	calls := client.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one tool invocation, got %d", len(calls))
	}
	argv := calls[0]
	if argv[0] != "-i" || argv[1] != source {
		t.Fatalf("argv should start with the input: %v", argv[:2])
	}
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "-threads 2") {
		t.Fatalf("extra args missing from argv: %v", argv)
	}
	temp := argv[len(argv)-1]
	if filepath.Dir(temp) != cfg.Paths.StagingDir || !strings.HasSuffix(temp, ".part") {
		t.Fatalf("tool should write into staging, got %q", temp)
	}
	if !strings.Contains(joined, "-s 1280x720") {
		t.Fatalf("expected 1920x1080 scaled into the 1280x720 box, argv: %v", argv)
	}

	if leftover := partFiles(t, cfg.Paths.StagingDir); len(leftover) != 0 {
		t.Fatalf("staging dir still has temp output: %v", leftover)
	}

	if len(snaps) == 0 {
		t.Fatal("expected progress callbacks")
	}
	sawDuration := false
	for _, snap := range snaps {
		if snap.Duration == 110 {
			sawDuration = true
		}
	}
	if !sawDuration {
		t.Errorf("no snapshot carried the parsed duration: %+v", snaps)
	}
	last := snaps[len(snaps)-1]
	if !last.Finished || last.Percent != 100 {
		t.Fatalf("final snapshot should be finished at 100%%, got %+v", last)
	}

	records, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one history row, got %d", len(records))
	}
	rec := records[0]
	if rec.Status != history.StatusCompleted {
		t.Fatalf("history status: got %q want %q", rec.Status, history.StatusCompleted)
	}
	if rec.OutputPath != wantOutput || rec.OutputBytes != result.OutputBytes {
		t.Fatalf("history row mismatch: %+v", rec)
	}
}

func TestRunPicksFreeOutputName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &scriptedClient{lines: successLines, payload: "second"}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110, Width: 1920, Height: 1080})),
	)

	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	occupied := filepath.Join(cfg.Paths.OutputDir, "clip.webmhd.webm")
	if err := os.WriteFile(occupied, []byte("first"), 0o644); err != nil {
		t.Fatalf("occupy output name: %v", err)
	}

	result, err := runner.Run(context.Background(), convert.Request{
		Source:  writeSource(t, "clip.mkv"),
		Profile: webmProfile(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := filepath.Join(cfg.Paths.OutputDir, "clip.webmhd.1.webm")
	if result.OutputPath != want {
		t.Fatalf("output path: got %q want %q", result.OutputPath, want)
	}
	if data, _ := os.ReadFile(occupied); string(data) != "first" {
		t.Fatalf("existing output was clobbered: %q", data)
	}
}

func TestRunToolErrorDiscardsTemp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	client := &scriptedClient{
		lines: []string{
			"  Duration: 00:01:50.00, start: 0.000000, bitrate: 1204 kb/s",
			"Unknown encoder 'libvpx'",
		},
		payload: "partial output",
	}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110, Width: 1920, Height: 1080})),
		convert.WithHistory(store),
	)

	_, err := runner.Run(context.Background(), convert.Request{
		Source:  writeSource(t, "clip.mkv"),
		Profile: webmProfile(t),
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unknown encoder") {
		t.Fatalf("error should carry the diagnostic line: %v", err)
	}

	if leftover := partFiles(t, cfg.Paths.StagingDir); len(leftover) != 0 {
		t.Fatalf("temp output should be discarded on failure: %v", leftover)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.OutputDir, "clip.webmhd.webm")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("nothing should be promoted on failure: %v", statErr)
	}

	records, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 1 || records[0].Status != history.StatusFailed {
		t.Fatalf("expected one failed history row, got %+v", records)
	}
	if !strings.Contains(records[0].ErrorMessage, "Unknown encoder") {
		t.Fatalf("history row should carry the diagnostic: %+v", records[0])
	}
}

func TestRunProcessFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &scriptedClient{err: errors.New("ffmpeg: wait command: exit status 1")}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110, Width: 1920, Height: 1080})),
	)

	_, err := runner.Run(context.Background(), convert.Request{
		Source:  writeSource(t, "clip.mkv"),
		Profile: webmProfile(t),
	})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "exit status 1") {
		t.Fatalf("error should carry the process failure: %v", err)
	}
}

func TestRunCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	client := &scriptedClient{block: true}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110, Width: 1920, Height: 1080})),
		convert.WithHistory(store),
	)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()

	_, err := runner.Run(ctx, convert.Request{
		Source:  writeSource(t, "clip.mkv"),
		Profile: webmProfile(t),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if leftover := partFiles(t, cfg.Paths.StagingDir); len(leftover) != 0 {
		t.Fatalf("temp output should be discarded on cancel: %v", leftover)
	}
	records, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 1 || records[0].Status != history.StatusCanceled {
		t.Fatalf("expected one canceled history row, got %+v", records)
	}
}

func TestRunValidatesRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &scriptedClient{}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{})),
	)

	if _, err := runner.Run(context.Background(), convert.Request{Profile: webmProfile(t)}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty source should fail validation, got %v", err)
	}
	if _, err := runner.Run(context.Background(), convert.Request{Source: "/a/b", Profile: nil}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("nil profile should fail validation, got %v", err)
	}
	if _, err := runner.Run(context.Background(), convert.Request{
		Source:  filepath.Join(t.TempDir(), "missing.mkv"),
		Profile: webmProfile(t),
	}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing source should fail validation, got %v", err)
	}
	if calls := client.calls(); len(calls) != 0 {
		t.Fatalf("tool must not run for invalid requests: %v", calls)
	}
}

func TestRunUnknownDimensionsFailBeforeSpawn(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &scriptedClient{lines: successLines, payload: "never"}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110})),
	)

	// A single-axis target needs the source aspect ratio, which an unprobed
	// source cannot supply.
	p, err := profile.NewFFmpegProfile("Half Size", profile.MediaTypeFormat,
		"-f webm -vcodec libvpx -s {ssize}",
		profile.WithExtension("webm"),
		profile.WithTargetBox(854, 0),
	)
	if err != nil {
		t.Fatalf("build profile: %v", err)
	}

	_, err = runner.Run(context.Background(), convert.Request{
		Source:  writeSource(t, "clip.mkv"),
		Profile: p,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !errors.Is(err, profile.ErrInvalidDimensions) {
		t.Fatalf("cause should be the dimension error, got %v", err)
	}
	if calls := client.calls(); len(calls) != 0 {
		t.Fatalf("tool must not run without usable dimensions: %v", calls)
	}
}

func TestRunAudioProfileWithoutProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &scriptedClient{lines: successLines, payload: "audio"}
	failingProbe := func(context.Context, string, string) (media.Source, error) {
		return media.Source{}, errors.New("ffprobe: executable not found")
	}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(failingProbe),
	)

	result, err := runner.Run(context.Background(), convert.Request{
		Source:  writeSource(t, "talk.wav"),
		Profile: mp3Profile(t),
	})
	if err != nil {
		t.Fatalf("audio conversion should not need probe data: %v", err)
	}
	want := filepath.Join(cfg.Paths.OutputDir, "talk.mp3.mp3")
	if result.OutputPath != want {
		t.Fatalf("output path: got %q want %q", result.OutputPath, want)
	}
}

func TestRunOutputDirOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &scriptedClient{lines: successLines, payload: "override"}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110, Width: 1920, Height: 1080})),
	)

	override := filepath.Join(t.TempDir(), "elsewhere")
	result, err := runner.Run(context.Background(), convert.Request{
		Source:    writeSource(t, "clip.mkv"),
		Profile:   webmProfile(t),
		OutputDir: override,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if filepath.Dir(result.OutputPath) != override {
		t.Fatalf("output should land in the override dir: %q", result.OutputPath)
	}
}

func TestRunRefusesConcurrentSameOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &scriptedClient{lines: successLines, payload: "never"}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110, Width: 1920, Height: 1080})),
	)

	if err := os.MkdirAll(cfg.Paths.StagingDir, 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}
	held := flock.New(filepath.Join(cfg.Paths.StagingDir, "clip.webmhd.webm.lock"))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	_, err = runner.Run(context.Background(), convert.Request{
		Source:  writeSource(t, "clip.mkv"),
		Profile: webmProfile(t),
	})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient lock error, got %v", err)
	}
	if calls := client.calls(); len(calls) != 0 {
		t.Fatalf("tool must not run while the output is locked: %v", calls)
	}
}

func TestRunRemuxesMP4(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &scriptedClient{lines: successLines, payload: "mp4 payload"}
	p, err := profile.NewFFmpegProfile("MP4", profile.MediaTypeFormat,
		"-acodec aac -ab 160k -vcodec libx264 -preset slow -crf 22 -f mp4 -s {ssize}",
		profile.WithExtension("mp4"),
		profile.WithTargetBox(1280, 720),
	)
	if err != nil {
		t.Fatalf("build profile: %v", err)
	}
	runner := convert.NewRunner(cfg, logging.NewNop(),
		convert.WithClient(client),
		convert.WithProber(staticProber(media.Source{Duration: 110, Width: 1920, Height: 1080})),
	)

	result, err := runner.Run(context.Background(), convert.Request{
		Source:  writeSource(t, "clip.mkv"),
		Profile: p,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	calls := client.calls()
	if len(calls) != 2 {
		t.Fatalf("expected conversion plus remux invocations, got %d", len(calls))
	}
	remux := strings.Join(calls[1], " ")
	if !strings.Contains(remux, "-movflags +faststart") {
		t.Fatalf("second invocation should be the faststart remux: %v", calls[1])
	}
	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "mp4 payload" {
		t.Fatalf("unexpected output content: %q", data)
	}
	if leftover := partFiles(t, cfg.Paths.StagingDir); len(leftover) != 0 {
		t.Fatalf("staging dir still has temp output: %v", leftover)
	}
}
