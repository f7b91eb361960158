package deps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"recast/internal/config"
)

// Default lists the external tools a conversion run depends on. FFprobe is
// optional: without it progress percentages and aspect-derived dimensions
// are unavailable, but conversions still run.
func Default(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Performs all conversions",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Probes source duration and dimensions",
			Optional:    true,
		},
	}
}

// CheckDirAccess verifies that path exists, is a directory, and is fully
// accessible to the current user.
func CheckDirAccess(name, path string) Status {
	status := Status{Name: name, Command: path}
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		status.Detail = "does not exist"
	case err != nil:
		status.Detail = fmt.Sprintf("stat: %v", err)
	case !info.IsDir():
		status.Detail = "not a directory"
	default:
		if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
			status.Detail = fmt.Sprintf("insufficient permissions: %v", err)
			return status
		}
		status.Available = true
		status.Detail = "read/write ok"
	}
	return status
}
