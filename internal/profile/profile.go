package profile

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"recast/internal/media"
)

// MediaType groups profiles by how their output is finalized. Format
// profiles targeting mp4 get a faststart remux on commit; everything else is
// moved into place directly.
type MediaType string

const (
	MediaTypeFormat MediaType = "format"
	MediaTypeDevice MediaType = "device"
)

// Settings supplies the executable path and user argument overrides. The
// application config satisfies this.
type Settings interface {
	FFmpegBinary() string
	CustomizeFFmpegArgs(args []string) []string
}

// Profile describes one conversion recipe. Implementations are immutable
// after construction; the registry hands out shared references.
type Profile interface {
	Name() string
	ID() string
	MediaType() MediaType
	// TargetExtension is the output extension without the leading dot, or
	// "" to keep the source extension.
	TargetExtension() string
	// Bitrate is the expected output bitrate in bits per second, 0 when
	// unknown.
	Bitrate() int64
	OutputFileName(src media.Source) string
	// OutputSizeGuess estimates the output size in bytes. The bool is false
	// when no estimate is possible, which is distinct from a zero-byte
	// estimate.
	OutputSizeGuess(src media.Source) (int64, bool)
	// Arguments synthesizes the full ffmpeg argument vector for one
	// conversion: input designation first, destination path last.
	Arguments(settings Settings, src media.Source, outputPath string) ([]string, error)
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Identifier derives the registry key for a display name: non-alphanumeric
// runs are removed and the remainder lowercased. Names differing only in
// punctuation or case collide by design.
func Identifier(name string) string {
	return strings.ToLower(nonAlphanumeric.ReplaceAllString(name, ""))
}

// OutputFileName derives `<stem>.<identifier>.<ext>` from the source file
// name. When targetExt is empty the source extension (minus its leading dot)
// is reused; an extensionless source then yields a trailing dot. This layout
// is relied on by downstream tooling and must not change.
func OutputFileName(id, targetExt string, src media.Source) string {
	base := filepath.Base(src.Path)
	ext := filepath.Ext(base)
	if ext == base {
		// Dotfiles have no extension.
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	ext = strings.TrimPrefix(ext, ".")
	if targetExt != "" {
		ext = targetExt
	}
	return fmt.Sprintf("%s.%s.%s", stem, id, ext)
}

// FFmpegProfile is a Profile whose argument vector comes from a parameter
// template with {ssize}, {input}, and {output} placeholders.
type FFmpegProfile struct {
	name       string
	id         string
	mediaType  MediaType
	extension  string
	bitrate    int64
	box        Dimensions
	dontUpsize bool
	template   string
}

var _ Profile = (*FFmpegProfile)(nil)

// ProfileOption configures an FFmpegProfile during construction.
type ProfileOption func(*FFmpegProfile)

// WithExtension sets the target extension (no leading dot).
func WithExtension(ext string) ProfileOption {
	return func(p *FFmpegProfile) {
		p.extension = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	}
}

// WithBitrate records the expected output bitrate in bits per second,
// enabling output size estimates.
func WithBitrate(bitsPerSecond int64) ProfileOption {
	return func(p *FFmpegProfile) {
		p.bitrate = bitsPerSecond
	}
}

// WithTargetBox constrains output dimensions to the given box. Either
// component may be zero, meaning "derive from aspect ratio".
func WithTargetBox(width, height int) ProfileOption {
	return func(p *FFmpegProfile) {
		p.box = Dimensions{Width: width, Height: height}
	}
}

// WithUpsizing permits scaling above the source dimensions. The default
// clamps to the source.
func WithUpsizing() ProfileOption {
	return func(p *FFmpegProfile) {
		p.dontUpsize = false
	}
}

// NewFFmpegProfile builds a profile. The name must yield a non-empty
// identifier and the parameter template is mandatory; both are programming
// errors in a catalog, not runtime conditions.
func NewFFmpegProfile(name string, mediaType MediaType, template string, opts ...ProfileOption) (*FFmpegProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("profile name required")
	}
	id := Identifier(name)
	if id == "" {
		return nil, fmt.Errorf("profile name %q yields an empty identifier", name)
	}
	if strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("profile %q: parameter template required", name)
	}
	p := &FFmpegProfile{
		name:       name,
		id:         id,
		mediaType:  mediaType,
		dontUpsize: true,
		template:   template,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *FFmpegProfile) Name() string { return p.name }

func (p *FFmpegProfile) ID() string { return p.id }

func (p *FFmpegProfile) MediaType() MediaType { return p.mediaType }

func (p *FFmpegProfile) TargetExtension() string { return p.extension }

func (p *FFmpegProfile) Bitrate() int64 { return p.bitrate }

func (p *FFmpegProfile) OutputFileName(src media.Source) string {
	return OutputFileName(p.id, p.extension, src)
}

func (p *FFmpegProfile) OutputSizeGuess(src media.Source) (int64, bool) {
	if p.bitrate <= 0 || !src.HasDuration() {
		return 0, false
	}
	return int64(float64(p.bitrate) * src.Duration / 8), true
}

// Arguments expands the parameter template, applies user overrides from
// settings, and wraps the result in the fixed input/output framing.
func (p *FFmpegProfile) Arguments(settings Settings, src media.Source, outputPath string) ([]string, error) {
	params, err := p.expandTemplate(src, outputPath)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		params = settings.CustomizeFFmpegArgs(params)
	}
	args := make([]string, 0, len(params)+5)
	args = append(args, "-i", src.Path, "-strict", "experimental")
	args = append(args, params...)
	args = append(args, outputPath)
	return args, nil
}

func (p *FFmpegProfile) expandTemplate(src media.Source, outputPath string) ([]string, error) {
	ssize := ""
	if strings.Contains(p.template, "{ssize}") {
		dims, err := Rescale(Dimensions{Width: src.Width, Height: src.Height}, p.box, p.dontUpsize)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.id, err)
		}
		ssize = dims.String()
	}
	expanded := strings.NewReplacer(
		"{ssize}", ssize,
		"{input}", src.Path,
		"{output}", outputPath,
	).Replace(p.template)
	return strings.Fields(expanded), nil
}
