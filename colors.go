package main

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Endpoints of the mass ramp: light bodies are cold blue, heavy ones amber.
var (
	lightBody = colorful.Color{R: 0.62, G: 0.80, B: 1.0}
	heavyBody = colorful.Color{R: 1.0, G: 0.70, B: 0.28}
)

// massColor blends along the mass ramp on a log scale. Merged bodies can
// exceed maxMass; they saturate at the heavy end.
func massColor(mass, maxMass float64) color.RGBA {
	t := 0.0
	if maxMass > 0 {
		t = math.Log1p(mass) / math.Log1p(maxMass*4)
	}
	t = math.Max(0, math.Min(1, t))
	r, g, b := lightBody.BlendHcl(heavyBody, t).Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// fade returns c at alpha a, keeping the premultiplied form vector expects
func fade(c color.RGBA, a uint8) color.RGBA {
	return color.RGBA{
		uint8(uint16(c.R) * uint16(a) / 255),
		uint8(uint16(c.G) * uint16(a) / 255),
		uint8(uint16(c.B) * uint16(a) / 255),
		a,
	}
}

// densityColor maps cell occupancy to a translucent blue-to-red hue
func densityColor(count, peak int) color.RGBA {
	t := float64(count) / float64(max(peak, 1))
	r, g, b := colorful.Hsv(240*(1-t), 0.9, 0.35+0.5*t).RGB255()
	return fade(color.RGBA{r, g, b, 255}, uint8(60+120*t))
}
