// Package config loads, validates, and normalizes recast configuration.
//
// Configuration lives in a TOML file (default ~/.config/recast/config.toml)
// split into sections: paths, ffmpeg, profiles, history, and logging. Load
// applies defaults first, decodes the file over them, expands home-relative
// paths, and validates the result so downstream code never sees a partially
// formed Config.
package config
