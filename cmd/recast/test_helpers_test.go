package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubFFmpeg treats its last argument as the output path and replays the
// diagnostic shapes the status grammar understands.
const stubFFmpeg = `#!/bin/sh
for arg do out="$arg"; done
printf '  Duration: 00:00:02.00, start: 0.000000, bitrate: 1052 kb/s\n' >&2
printf 'frame=   30 fps= 30 q=28.0 size=     128kB time=00:00:01.00 bitrate= 512.0kbits/s speed=1x\n' >&2
printf 'converted payload' > "$out"
printf 'frame=   60 fps= 30 q=-1.0 Lsize=     256kB time=00:00:02.00 bitrate= 512.0kbits/s speed=1x\n' >&2
exit 0
`

// stubFFprobe must keep stderr clean: the prober reads combined output.
const stubFFprobe = `#!/bin/sh
cat <<'JSON'
{
  "streams": [
    {"index": 0, "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_type": "audio", "channels": 2}
  ],
  "format": {"format_name": "avi", "duration": "2.000000", "size": "1048576", "bit_rate": "4194304"}
}
JSON
exit 0
`

type cliTestEnv struct {
	baseDir     string
	configPath  string
	stagingDir  string
	outputDir   string
	logDir      string
	profileDir  string
	ffmpegPath  string
	ffprobePath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	env := &cliTestEnv{
		baseDir:     base,
		configPath:  filepath.Join(base, "config.toml"),
		stagingDir:  filepath.Join(base, "staging"),
		outputDir:   filepath.Join(base, "output"),
		logDir:      filepath.Join(base, "logs"),
		profileDir:  filepath.Join(base, "profiles"),
		ffmpegPath:  filepath.Join(base, "bin", "ffmpeg"),
		ffprobePath: filepath.Join(base, "bin", "ffprobe"),
	}
	writeStub(t, env.ffmpegPath, stubFFmpeg)
	writeStub(t, env.ffprobePath, stubFFprobe)
	writeTestConfig(t, env)

	return env
}

func writeStub(t *testing.T, path, script string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir stub dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
staging_dir = %q
output_dir = %q
log_dir = %q
profile_dir = %q

[ffmpeg]
binary = %q
ffprobe_binary = %q

[history]
enabled = true

[logging]
level = "error"
format = "console"
`,
		env.stagingDir,
		env.outputDir,
		env.logDir,
		env.profileDir,
		env.ffmpegPath,
		env.ffprobePath,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(env.baseDir, name)
	if err := os.WriteFile(path, []byte("raw media"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q to not contain %q", output, substr)
	}
}
