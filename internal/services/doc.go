// Package services defines shared utilities consumed by the conversion
// pipeline and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp conversion IDs, profile identifiers, and
//     stage names for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     classifiable sentinel alongside human-readable stage context.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the tool.
package services
