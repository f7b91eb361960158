package media

import "path/filepath"

// Source describes the file a conversion reads from. Duration, Width, and
// Height are zero until a probe (or the converter's own diagnostics) fills
// them in; zero means unknown, never "empty media".
type Source struct {
	Path     string
	Duration float64
	Width    int
	Height   int
}

// HasDuration reports whether the source duration is known.
func (s Source) HasDuration() bool {
	return s.Duration > 0
}

// HasDimensions reports whether both source dimensions are known.
func (s Source) HasDimensions() bool {
	return s.Width > 0 && s.Height > 0
}

// Base returns the file name component of the source path.
func (s Source) Base() string {
	return filepath.Base(s.Path)
}

// Ext returns the source path extension including the leading dot, or the
// empty string when the file has none.
func (s Source) Ext() string {
	return filepath.Ext(s.Path)
}
