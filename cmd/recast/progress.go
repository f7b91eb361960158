package main

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"recast/internal/convert"
)

// conversionBar renders live conversion progress on a percent scale. The
// underlying seconds counts vary per source, so the bar normalizes to 0-100
// and simply sits at zero until the parser has seen a duration line.
type conversionBar struct {
	bar *progressbar.ProgressBar
}

func newConversionBar(w io.Writer, label string) *conversionBar {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	return &conversionBar{bar: bar}
}

// update is safe to hand to convert.Request.OnProgress; the runner publishes
// snapshots from its stream readers.
func (c *conversionBar) update(p convert.Progress) {
	switch {
	case p.Finished:
		_ = c.bar.Finish()
	case p.Percent >= 0:
		_ = c.bar.Set(int(p.Percent))
	}
}

func (c *conversionBar) close() {
	_ = c.bar.Close()
}
