// Package logs tails the run log with bounded memory usage.
//
// Interactive conversions route structured logging to the log file so the
// progress bar owns the terminal; this package is how `recast logs` reads
// that file back. Negative offsets request the last N lines, and follow mode
// polls for new lines within a caller-supplied wait window so the CLI can
// stream a running conversion from another terminal.
package logs
