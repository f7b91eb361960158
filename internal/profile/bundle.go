package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"recast/internal/logging"
)

// A bundle is a TOML file declaring bare profiles and branded groups:
//
//	[[profile]]
//	name = "Tiny WebM"
//	extension = "webm"
//	parameters = "-f webm -vcodec libvpx -s {ssize}"
//
//	[[group]]
//	brand = "handheld"
//
//	[[group.profile]]
//	name = "PSP"
//	extension = "mp4"
//	parameters = "..."
type bundleFile struct {
	Profiles []bundleProfile `toml:"profile"`
	Groups   []bundleGroup   `toml:"group"`
}

type bundleGroup struct {
	Brand    string          `toml:"brand"`
	Profiles []bundleProfile `toml:"profile"`
}

type bundleProfile struct {
	Name       string `toml:"name"`
	MediaType  string `toml:"media_type"`
	Extension  string `toml:"extension"`
	Bitrate    int64  `toml:"bitrate"`
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	DontUpsize *bool  `toml:"dont_upsize"`
	Parameters string `toml:"parameters"`
}

// LoadBundle parses one bundle file into catalog entries. Any invalid
// profile rejects the whole bundle so a partially applied file never ends up
// in the registry.
func LoadBundle(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var doc bundleFile
	if err := toml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return doc.entries()
}

func (b bundleFile) entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(b.Profiles)+len(b.Groups))
	for i, bp := range b.Profiles {
		p, err := bp.build()
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i+1, err)
		}
		entries = append(entries, Bare(p))
	}
	for i, g := range b.Groups {
		brand := strings.ToLower(strings.TrimSpace(g.Brand))
		if brand == "" {
			return nil, fmt.Errorf("group %d: brand required", i+1)
		}
		profiles := make([]Profile, 0, len(g.Profiles))
		for j, bp := range g.Profiles {
			p, err := bp.build()
			if err != nil {
				return nil, fmt.Errorf("group %q profile %d: %w", brand, j+1, err)
			}
			profiles = append(profiles, p)
		}
		entries = append(entries, Entry{Brand: brand, Profiles: profiles})
	}
	return entries, nil
}

func (bp bundleProfile) build() (Profile, error) {
	mediaType := MediaType(strings.TrimSpace(bp.MediaType))
	switch mediaType {
	case "":
		mediaType = MediaTypeFormat
	case MediaTypeFormat, MediaTypeDevice:
	default:
		return nil, fmt.Errorf("unknown media_type %q", bp.MediaType)
	}
	var opts []ProfileOption
	if bp.Extension != "" {
		opts = append(opts, WithExtension(bp.Extension))
	}
	if bp.Bitrate > 0 {
		opts = append(opts, WithBitrate(bp.Bitrate))
	}
	if bp.Width > 0 || bp.Height > 0 {
		opts = append(opts, WithTargetBox(bp.Width, bp.Height))
	}
	if bp.DontUpsize != nil && !*bp.DontUpsize {
		opts = append(opts, WithUpsizing())
	}
	return NewFFmpegProfile(bp.Name, mediaType, bp.Parameters, opts...)
}

// LoadBundles ingests every .toml bundle under dir in lexical order, so
// later files override earlier ones deterministically. A missing directory
// is not an error. A bundle that fails to parse is logged and skipped; one
// bad file must not take down the catalog.
func (r *Registry) LoadBundles(dir string) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read profile dir: %w", err)
	}
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".toml") {
			continue
		}
		entries, err := LoadBundle(filepath.Join(dir, name))
		if err != nil {
			r.logger.Warn("skipping profile bundle", "bundle", name, logging.Error(err))
			continue
		}
		count := 0
		for _, e := range entries {
			count += len(e.Profiles)
		}
		if count == 0 {
			r.logger.Warn("skipping profile bundle", "bundle", name, "reason", "defines no profiles")
			continue
		}
		for _, e := range entries {
			r.AddEntry(e)
		}
		r.logger.Info("loaded profile bundle", "bundle", name, "profiles", count)
	}
	return nil
}
