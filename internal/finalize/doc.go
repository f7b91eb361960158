// Package finalize commits temporary conversion outputs to their final
// locations. Format mp4 outputs are rewritten for streaming via an external
// remux pass; everything else is moved atomically, with a verified copy
// fallback across filesystems. Cleanup never masks the primary failure.
package finalize
