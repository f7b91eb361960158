package convert

import (
	"sync"
	"time"
)

// Progress is a point-in-time view of a running conversion. Percent stays
// -1 until the source duration is known; callers using it for timeout
// policy should rely on Seconds and Elapsed instead.
type Progress struct {
	ConversionID string
	Profile      string
	Source       string
	Output       string
	Duration     float64
	Seconds      float64
	Percent      float64
	Elapsed      time.Duration
	Finished     bool
}

// tracker serializes progress updates coming off the process's stream
// readers and remembers the latest snapshot for observers. The ffmpeg
// client drains stdout and stderr concurrently, so updates may arrive from
// two goroutines.
type tracker struct {
	mu      sync.Mutex
	started time.Time
	current Progress
	notify  func(Progress)
}

func newTracker(id, profileID, source, output string, notify func(Progress)) *tracker {
	return &tracker{
		started: time.Now(),
		current: Progress{
			ConversionID: id,
			Profile:      profileID,
			Source:       source,
			Output:       output,
			Percent:      -1,
		},
		notify: notify,
	}
}

func (t *tracker) setDuration(seconds float64) Progress {
	t.mu.Lock()
	t.current.Duration = seconds
	t.refreshLocked()
	snap := t.current
	t.mu.Unlock()
	t.publish(snap)
	return snap
}

func (t *tracker) setSeconds(seconds float64) Progress {
	t.mu.Lock()
	t.current.Seconds = seconds
	t.refreshLocked()
	snap := t.current
	t.mu.Unlock()
	t.publish(snap)
	return snap
}

func (t *tracker) finish() Progress {
	t.mu.Lock()
	t.current.Finished = true
	if t.current.Duration > 0 {
		t.current.Seconds = t.current.Duration
	}
	t.current.Percent = 100
	t.current.Elapsed = time.Since(t.started)
	snap := t.current
	t.mu.Unlock()
	t.publish(snap)
	return snap
}

func (t *tracker) refreshLocked() {
	t.current.Elapsed = time.Since(t.started)
	if t.current.Duration > 0 {
		pct := t.current.Seconds / t.current.Duration * 100
		if pct > 100 {
			pct = 100
		}
		t.current.Percent = pct
	}
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.Elapsed = time.Since(t.started)
	return t.current
}

func (t *tracker) publish(p Progress) {
	if t.notify != nil {
		t.notify(p)
	}
}
