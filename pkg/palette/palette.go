// Package palette maps population figures to colors and marker sizes.
package palette

import (
	"fmt"
	"math"
	"sync"
)

// RGB is an 8-bit color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// RGBA is an 8-bit color with alpha.
type RGBA struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// WithAlpha returns c with the given alpha.
func (c RGB) WithAlpha(a uint8) RGBA {
	return RGBA{R: c.R, G: c.G, B: c.B, A: a}
}

// Hex returns the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// stops run from sparse (deep blue) to dense (red).
var stops = [...]RGB{
	{25, 60, 110},
	{18, 125, 125},
	{35, 165, 75},
	{195, 195, 45},
	{225, 135, 28},
	{215, 38, 38},
}

// ColorFor returns the gradient color for population relative to
// maxPopulation. The ratio is raised to 0.3 so small populations still
// spread across the low stops.
func ColorFor(population, maxPopulation int64) RGB {
	if maxPopulation <= 0 {
		return stops[0]
	}
	t := math.Pow(float64(population)/float64(maxPopulation), 0.3)
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	last := len(stops) - 1
	idx := t * float64(last)
	lo := int(math.Floor(idx))
	hi := min(lo+1, last)
	f := idx - float64(lo)

	a, b := stops[lo], stops[hi]
	return RGB{
		R: lerp(a.R, b.R, f),
		G: lerp(a.G, b.G, f),
		B: lerp(a.B, b.B, f),
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}

// FillFor returns the polygon fill for a population. Zero and negative
// populations are treated as 1.
func FillFor(population, maxPopulation int64, alpha uint8) RGBA {
	return ColorFor(max(1, population), maxPopulation).WithAlpha(alpha)
}

// Brighten moves each channel toward white by magnitude in [0,1].
// Alpha is unchanged.
func Brighten(c RGBA, magnitude float64) RGBA {
	keep := 1 - magnitude
	ch := func(v uint8) uint8 {
		return uint8(math.Round(255 - (255-float64(v))*keep))
	}
	return RGBA{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: c.A}
}

// Scale memoises ColorFor for a fixed maximum population.
type Scale struct {
	max int64

	mu   sync.Mutex
	memo map[int64]RGB
}

// NewScale creates a scale for the given maximum population.
func NewScale(maxPopulation int64) *Scale {
	return &Scale{max: maxPopulation, memo: make(map[int64]RGB)}
}

// Max returns the maximum population the scale was built for.
func (s *Scale) Max() int64 { return s.max }

// Color returns ColorFor(population, s.Max()).
func (s *Scale) Color(population int64) RGB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.memo[population]; ok {
		return c
	}
	c := ColorFor(population, s.max)
	s.memo[population] = c
	return c
}

// Fill is FillFor using the memoised scale.
func (s *Scale) Fill(population int64, alpha uint8) RGBA {
	return s.Color(max(1, population)).WithAlpha(alpha)
}
