// Package colorscale maps registration counts onto the green choropleth scale.
package colorscale

import (
	"fmt"
	"math"
)

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

// Endpoints of the scale: light green at intensity 0, dark green at 1.
var (
	Low  = RGB{R: 232, G: 245, B: 233}
	High = RGB{R: 27, G: 94, B: 32}
)

// String renders the CSS rgb() form, e.g. "rgb(232, 245, 233)".
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex renders "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Intensity normalizes count against maxCount into [0,1]. A maxCount below
// one is treated as one.
func Intensity(count, maxCount int) float64 {
	v := float64(count) / float64(max(maxCount, 1))
	return clamp(v)
}

// Color interpolates linearly between Low and High. Each channel is floored.
func Color(intensity float64) RGB {
	i := clamp(intensity)
	return RGB{
		R: channel(Low.R, High.R, i),
		G: channel(Low.G, High.G, i),
		B: channel(Low.B, High.B, i),
	}
}

// ColorFor is Color(Intensity(count, maxCount)).
func ColorFor(count, maxCount int) RGB {
	return Color(Intensity(count, maxCount))
}

func channel(from, to uint8, i float64) uint8 {
	return uint8(math.Floor(float64(from) - (float64(from)-float64(to))*i))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
