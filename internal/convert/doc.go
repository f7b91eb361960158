// Package convert orchestrates single media conversions: it probes the
// source, synthesizes the tool invocation from a profile, tracks progress
// from the diagnostic stream, and hands the staged output to the finalizer.
package convert
