package ffmpeg_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recast/internal/services/ffmpeg"
)

type stubExecutor struct {
	lines  []string
	err    error
	calls  int
	binary string
	args   [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	s.calls++
	s.binary = binary
	s.args = append(s.args, append([]string(nil), args...))
	for _, line := range s.lines {
		onLine(line)
	}
	return s.err
}

func TestConvertStreamsParsedEvents(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		"Input #0, avi, from 'clip.avi':",
		"  Duration: 00:01:30.50, start: 0.000000, bitrate: 128 kb/s",
		"size=1024kB time=00:00:45.00 bitrate=128.0kbits/s",
		"frame=100 fps=25 q=0 Lsize=2048kB time=00:01:30.50 bitrate=128.0kbits/s",
	}}
	cli := ffmpeg.NewCLI("ffmpeg", ffmpeg.WithExecutor(exec))

	var events []ffmpeg.Event
	err := cli.Convert(context.Background(), []string{"-i", "clip.avi", "out.mp4"}, func(event ffmpeg.Event) {
		events = append(events, event)
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("expected one executor call, got %d", exec.calls)
	}
	if exec.binary != "ffmpeg" {
		t.Fatalf("unexpected binary: %q", exec.binary)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != ffmpeg.EventDuration || events[0].Duration != 90.5 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Kind != ffmpeg.EventProgress || events[1].Seconds != 45 {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	if events[2].Kind != ffmpeg.EventFinished {
		t.Fatalf("unexpected third event: %+v", events[2])
	}
}

func TestConvertRejectsEmptyArgs(t *testing.T) {
	cli := ffmpeg.NewCLI("ffmpeg", ffmpeg.WithExecutor(&stubExecutor{}))
	if err := cli.Convert(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for empty argument vector")
	}
}

func TestConvertWrapsRunFailureWithDiagnosticTail(t *testing.T) {
	exec := &stubExecutor{
		lines: []string{"clip.avi: No such file or directory", ""},
		err:   errors.New("exit status 1"),
	}
	cli := ffmpeg.NewCLI("ffmpeg", ffmpeg.WithExecutor(exec))

	err := cli.Convert(context.Background(), []string{"-i", "clip.avi", "out.mp4"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "exit status 1") {
		t.Fatalf("expected cause in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "No such file or directory") {
		t.Fatalf("expected diagnostic tail in error, got %v", err)
	}
}

func TestConvertKeepsOnlyRecentDiagnostics(t *testing.T) {
	lines := []string{"one", "two", "three", "four", "five", "six", "seven"}
	exec := &stubExecutor{lines: lines, err: errors.New("exit status 1")}
	cli := ffmpeg.NewCLI("ffmpeg", ffmpeg.WithExecutor(exec))

	err := cli.Convert(context.Background(), []string{"-i", "in", "out"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), "one") || strings.Contains(err.Error(), "two") {
		t.Fatalf("expected oldest diagnostics dropped, got %v", err)
	}
	if !strings.Contains(err.Error(), "seven") {
		t.Fatalf("expected newest diagnostic kept, got %v", err)
	}
}

func TestNewCLIDefaultsBinary(t *testing.T) {
	exec := &stubExecutor{}
	cli := ffmpeg.NewCLI("   ", ffmpeg.WithExecutor(exec))
	if err := cli.Convert(context.Background(), []string{"-version"}, nil); err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if exec.binary != "ffmpeg" {
		t.Fatalf("expected default binary ffmpeg, got %q", exec.binary)
	}
}
