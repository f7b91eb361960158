// Package profile defines conversion profiles and the registry that indexes
// them. A profile turns a probed source into a complete ffmpeg argument
// vector plus naming and size metadata; the registry resolves profiles by
// identifier or device brand and can be rebuilt from TOML bundles at
// runtime.
package profile
