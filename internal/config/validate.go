package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateProfiles(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	for _, arg := range c.FFmpeg.ExtraArgs {
		if arg == "-i" {
			return fmt.Errorf("ffmpeg.extra_args must not declare inputs (%q)", arg)
		}
	}
	return nil
}

func (c *Config) validateProfiles() error {
	if c.Profiles.Watch && strings.TrimSpace(c.Paths.ProfileDir) == "" {
		return errors.New("paths.profile_dir must be set when profiles.watch is true")
	}
	return nil
}
