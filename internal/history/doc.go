// Package history records finished conversions in a SQLite database so the
// CLI can answer "what did I convert, where did it go, and did it work"
// across runs.
package history
