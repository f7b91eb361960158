package config

const (
	defaultStagingDir    = "~/.local/share/recast/staging"
	defaultLogDir        = "~/.local/share/recast/logs"
	defaultProfileDir    = "~/.config/recast/profiles"
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults. OutputDir is
// intentionally empty: conversions land next to their source file unless the
// user points them somewhere else.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			ProfileDir: defaultProfileDir,
		},
		FFmpeg: FFmpeg{
			Binary:        defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
