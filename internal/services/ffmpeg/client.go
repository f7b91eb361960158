package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// tailLines bounds how much diagnostic context is attached to run failures.
const tailLines = 5

// Client defines the behaviour the conversion pipeline needs from ffmpeg.
type Client interface {
	Convert(ctx context.Context, args []string, onEvent func(Event)) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the client.
type Option func(*CLI)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *CLI) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// CLI invokes the ffmpeg binary and streams parsed diagnostic events.
type CLI struct {
	binary string
	exec   Executor
}

var _ Client = (*CLI)(nil)

// NewCLI constructs an ffmpeg client for the given binary.
func NewCLI(binary string, opts ...Option) *CLI {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cli := &CLI{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Convert runs ffmpeg with the supplied argument vector, feeding each
// diagnostic line through the status grammar and forwarding the resulting
// events. Lines arrive on separate stdout/stderr readers, so handling is
// serialized here; onEvent never runs concurrently with itself. A run
// failure carries the last few diagnostic lines for context.
func (c *CLI) Convert(ctx context.Context, args []string, onEvent func(Event)) error {
	if len(args) == 0 {
		return errors.New("ffmpeg convert: empty argument vector")
	}

	var mu sync.Mutex
	var tail []string
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		mu.Lock()
		defer mu.Unlock()
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			tail = append(tail, trimmed)
			if len(tail) > tailLines {
				tail = tail[1:]
			}
		}
		if onEvent == nil {
			return
		}
		if event, ok := ParseStatusLine(line); ok {
			onEvent(event)
		}
	})
	if err != nil {
		if len(tail) > 0 {
			return fmt.Errorf("ffmpeg: %w: %s", err, strings.Join(tail, " | "))
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Split(scanDiagnosticLines)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	forward := func(line string) {
		if onLine != nil {
			onLine(line)
			return
		}
		fmt.Fprintln(os.Stderr, line)
	}

	wg.Add(2)
	go scan(stdout, forward)
	go scan(stderr, forward)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

// scanDiagnosticLines splits on both \n and \r. ffmpeg redraws its status
// line in place with bare carriage returns, so a newline-only scanner would
// sit on one giant token until the process exits.
func scanDiagnosticLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance := i + 1
		if data[i] == '\r' && len(data) > i+1 && data[i+1] == '\n' {
			advance++
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
