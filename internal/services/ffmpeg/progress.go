package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

// EventKind classifies one parsed diagnostic line.
type EventKind int

const (
	// EventDuration reports the total input duration in seconds.
	EventDuration EventKind = iota
	// EventProgress reports how many seconds of output exist so far.
	EventProgress
	// EventFinished marks the final summary line of a successful run.
	EventFinished
	// EventError marks a fatal diagnostic; the conversion is over.
	EventError
)

// Event is the structured form of one diagnostic line. Duration is set for
// EventDuration, Seconds for EventProgress, and Line carries the offending
// diagnostic for EventError.
type Event struct {
	Kind     EventKind
	Duration float64
	Seconds  float64
	Line     string
}

// ffmpeg prints diagnostics on stderr; these patterns classify the lines the
// pipeline cares about. Anchors matter: a progress pattern loose enough to
// match mid-line would also fire on error text.
var (
	durationRE     = regexp.MustCompile(`^\W*Duration: (\d\d):(\d\d):(\d\d)\.(\d\d)(, start:.*)?(, bitrate:.*)?`)
	progressRE     = regexp.MustCompile(`^(?:frame=.* fps=.* q=.* )?size=.* time=(.*) bitrate=(.*)`)
	lastProgressRE = regexp.MustCompile(`^frame=.* fps=.* q=.* Lsize=.* time=(.*) bitrate=(.*)`)
)

// ParseStatusLine classifies a single diagnostic line. It is stateless; the
// caller accumulates whatever state it needs across lines. The second return
// is false when the line carries no event.
//
// Classification order is load-bearing: fatal diagnostics are checked before
// the duration and progress patterns so an error line can never satisfy the
// looser progress shape, and the running "size=" pattern is tried before the
// terminal "Lsize=" summary.
func ParseStatusLine(line string) (Event, bool) {
	if errLine, ok := checkForErrors(line); ok {
		return Event{Kind: EventError, Line: errLine}, true
	}

	if match := durationRE.FindStringSubmatch(line); match != nil {
		hours, _ := strconv.Atoi(match[1])
		minutes, _ := strconv.Atoi(match[2])
		seconds, _ := strconv.Atoi(match[3])
		centis, _ := strconv.Atoi(match[4])
		total := toSeconds(float64(hours), float64(minutes), float64(seconds)+0.01*float64(centis))
		return Event{Kind: EventDuration, Duration: total}, true
	}

	if match := progressRE.FindStringSubmatch(line); match != nil {
		seconds, ok := parseProgressTime(match[1])
		if !ok {
			return Event{}, false
		}
		return Event{Kind: EventProgress, Seconds: seconds}, true
	}

	if lastProgressRE.MatchString(line) {
		return Event{Kind: EventFinished}, true
	}

	return Event{}, false
}

// checkForErrors reports fatal diagnostics. "Error while decoding stream" is
// exempt: ffmpeg emits it for recoverable per-frame damage and the run still
// completes.
func checkForErrors(line string) (string, bool) {
	if strings.HasPrefix(line, "Unknown") {
		return line, true
	}
	if strings.HasPrefix(line, "Error") && !strings.HasPrefix(line, "Error while decoding stream") {
		return line, true
	}
	return "", false
}

// parseProgressTime converts the time= field to seconds. The field is either
// an H:M:S triple (extra components beyond the third are ignored) or a bare
// number of seconds.
func parseProgressTime(value string) (float64, bool) {
	if strings.Contains(value, ":") {
		parts := strings.Split(value, ":")
		if len(parts) < 3 {
			return 0, false
		}
		var hms [3]float64
		for i := 0; i < 3; i++ {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
			if err != nil {
				return 0, false
			}
			hms[i] = parsed
		}
		return toSeconds(hms[0], hms[1], hms[2]), true
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func toSeconds(hours, minutes, seconds float64) float64 {
	return hours*3600 + minutes*60 + seconds
}
