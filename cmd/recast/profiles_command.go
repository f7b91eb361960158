package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"recast/internal/media"
	"recast/internal/profile"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect the conversion profile catalog",
	}

	profilesCmd.AddCommand(newProfilesListCommand(ctx))
	profilesCmd.AddCommand(newProfilesShowCommand(ctx))

	return profilesCmd
}

func newProfilesListCommand(ctx *commandContext) *cobra.Command {
	var brandFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger(false)
			if err != nil {
				return err
			}
			handle, err := ctx.profileHandle(logger)
			if err != nil {
				return err
			}
			defer handle.Close()
			reg := handle.Registry()

			profiles := reg.List()
			if brand := strings.ToLower(strings.TrimSpace(brandFilter)); brand != "" {
				branded, known := reg.ProfilesForBrand(brand)
				if !known {
					return fmt.Errorf("unknown brand %q (known: %s)", brandFilter, strings.Join(reg.Brands(), ", "))
				}
				profiles = branded
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No profiles available")
				return nil
			}

			rows := make([][]string, 0, len(profiles))
			for _, p := range profiles {
				rows = append(rows, []string{
					p.ID(),
					p.Name(),
					brandLabel(reg, p.ID()),
					string(p.MediaType()),
					p.TargetExtension(),
					bitrateLabel(p.Bitrate()),
				})
			}
			table := renderTable(
				[]string{"ID", "Name", "Brand", "Type", "Container", "Bitrate"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVarP(&brandFilter, "brand", "b", "", "Only list profiles for the given device brand")
	return cmd
}

func newProfilesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <profile>",
		Short: "Show one profile in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger(false)
			if err != nil {
				return err
			}
			handle, err := ctx.profileHandle(logger)
			if err != nil {
				return err
			}
			defer handle.Close()
			reg := handle.Registry()

			p, err := reg.ByID(profile.Identifier(args[0]))
			if err != nil {
				return fmt.Errorf("unknown profile %q (run 'recast profiles list')", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", p.Name())
			fmt.Fprintf(out, "ID:         %s\n", p.ID())
			if brand := brandLabel(reg, p.ID()); brand != "" {
				fmt.Fprintf(out, "Brand:      %s\n", brand)
			}
			fmt.Fprintf(out, "Media type: %s\n", p.MediaType())
			if ext := p.TargetExtension(); ext != "" {
				fmt.Fprintf(out, "Container:  %s\n", ext)
			} else {
				fmt.Fprintln(out, "Container:  source extension")
			}
			if rate := bitrateLabel(p.Bitrate()); rate != "" {
				fmt.Fprintf(out, "Bitrate:    %s\n", rate)
			}

			// A synthetic HD source makes the synthesized command line
			// concrete without touching the filesystem.
			sample := media.Source{Path: "movie.avi", Duration: 3600, Width: 1920, Height: 1080}
			fmt.Fprintf(out, "Output:     %s\n", p.OutputFileName(sample))
			if argv, err := p.Arguments(cfg, sample, p.OutputFileName(sample)); err == nil {
				fmt.Fprintf(out, "Example:    %s %s\n", cfg.FFmpegBinary(), strings.Join(argv, " "))
			}
			return nil
		},
	}
}

func brandLabel(reg *profile.Registry, id string) string {
	brand, ok := reg.BrandOf(id)
	if !ok || brand == "" {
		return ""
	}
	return cases.Title(language.Und).String(brand)
}

func bitrateLabel(bitsPerSecond int64) string {
	if bitsPerSecond <= 0 {
		return ""
	}
	return fmt.Sprintf("%d kb/s", bitsPerSecond/1000)
}
