package profile

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions is returned when a rescale needs the source
// dimensions and they are unknown.
var ErrInvalidDimensions = errors.New("source dimensions unknown")

// Dimensions is a width/height pair in pixels. Zero means unset.
type Dimensions struct {
	Width  int
	Height int
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Rescale computes output dimensions for a target box while preserving the
// source aspect ratio. An unset target component is derived from the source;
// a fully unset target passes the source through. With dontUpsize the result
// never exceeds the source in either axis. Results are rounded to even so
// they are safe for chroma-subsampled encoders.
//
// When both target components are set but the source dimensions are unknown,
// the target box is returned as given: there is no ratio to preserve.
func Rescale(source, target Dimensions, dontUpsize bool) (Dimensions, error) {
	sourceKnown := source.Width > 0 && source.Height > 0

	var scale float64
	switch {
	case target.Width > 0 && target.Height > 0:
		if !sourceKnown {
			return Dimensions{Width: evenRound(float64(target.Width)), Height: evenRound(float64(target.Height))}, nil
		}
		scale = math.Min(
			float64(target.Width)/float64(source.Width),
			float64(target.Height)/float64(source.Height),
		)
	case target.Width > 0:
		if !sourceKnown {
			return Dimensions{}, ErrInvalidDimensions
		}
		scale = float64(target.Width) / float64(source.Width)
	case target.Height > 0:
		if !sourceKnown {
			return Dimensions{}, ErrInvalidDimensions
		}
		scale = float64(target.Height) / float64(source.Height)
	default:
		if !sourceKnown {
			return Dimensions{}, ErrInvalidDimensions
		}
		scale = 1
	}
	if dontUpsize && scale > 1 {
		scale = 1
	}
	return Dimensions{
		Width:  evenRound(float64(source.Width) * scale),
		Height: evenRound(float64(source.Height) * scale),
	}, nil
}

func evenRound(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Round(v/2)) * 2
}
