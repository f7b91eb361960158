package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recast/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools and workspace directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Binaries", colorize) {
				fmt.Fprintln(stdout, line)
			}
			missing := make([]string, 0)
			for _, status := range deps.CheckBinaries(deps.Default(cfg)) {
				switch {
				case status.Available:
					message := "Ready"
					if status.Command != "" {
						message = fmt.Sprintf("Ready (command: %s)", status.Command)
					}
					fmt.Fprintln(stdout, renderStatusLine(status.Name, statusOK, message, colorize))
				case status.Optional:
					fmt.Fprintln(stdout, renderStatusLine(status.Name, statusWarn, status.Detail+" (optional)", colorize))
				default:
					fmt.Fprintln(stdout, renderStatusLine(status.Name, statusError, status.Detail, colorize))
					missing = append(missing, status.Name)
				}
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Directories", colorize) {
				fmt.Fprintln(stdout, line)
			}
			directories := []struct {
				name string
				path string
			}{
				{"Staging", cfg.Paths.StagingDir},
				{"Output", cfg.Paths.OutputDir},
				{"Logs", cfg.Paths.LogDir},
				{"Profiles", cfg.Paths.ProfileDir},
			}
			for _, dir := range directories {
				if strings.TrimSpace(dir.path) == "" {
					fmt.Fprintln(stdout, renderStatusLine(dir.name, statusInfo, "not configured", colorize))
					continue
				}
				status := deps.CheckDirAccess(dir.name, dir.path)
				kind := statusOK
				if !status.Available {
					kind = statusError
				}
				fmt.Fprintln(stdout, renderStatusLine(dir.name, kind, fmt.Sprintf("%s (%s)", status.Detail, dir.path), colorize))
			}

			if len(missing) > 0 {
				return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
