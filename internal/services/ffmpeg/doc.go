// Package ffmpeg wraps invocation of the ffmpeg binary and the grammar of
// its diagnostic output.
//
// Key pieces:
//   - ParseStatusLine: stateless classifier turning one stderr line into a
//     duration, progress, finished, or error event
//   - Client/CLI: runs ffmpeg with an argument vector and streams parsed
//     events to a callback, with an injectable Executor seam for tests
//
// The executor splits output on carriage returns as well as newlines because
// ffmpeg redraws its progress line in place.
package ffmpeg
