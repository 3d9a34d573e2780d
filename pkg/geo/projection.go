package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Default equirectangular texture size.
const (
	TextureWidth  = 4096
	TextureHeight = 2048
)

// Equirectangular maps longitude/latitude linearly onto a Width x Height
// pixel grid with (-180, 90) at the top-left corner.
type Equirectangular struct {
	Width  float64
	Height float64
}

// DefaultTexture is the projection of the globe texture.
var DefaultTexture = Equirectangular{Width: TextureWidth, Height: TextureHeight}

// Project converts a lon/lat point to pixels.
func (e Equirectangular) Project(p orb.Point) Point2D {
	return Point2D{
		X: (p.Lon() + 180) / 360 * e.Width,
		Y: (90 - p.Lat()) / 180 * e.Height,
	}
}

// Invert converts pixels back to lon/lat.
func (e Equirectangular) Invert(p Point2D) orb.Point {
	return orb.Point{
		p.X/e.Width*360 - 180,
		90 - p.Y/e.Height*180,
	}
}

// DegreesPerPixel is the longitude span of one pixel.
func (e Equirectangular) DegreesPerPixel() float64 {
	return 360 / e.Width
}

// ProjectRing projects every position of a ring.
func (e Equirectangular) ProjectRing(r orb.Ring) Polygon {
	pts := make([]Point2D, len(r))
	for i, p := range r {
		pts[i] = e.Project(p)
	}
	return Polygon{Vertices: pts}
}

// ProjectGeometry flattens polygonal geometry into projected shapes.
// Non-polygonal members are ignored.
func (e Equirectangular) ProjectGeometry(g orb.Geometry) []Shape {
	switch v := g.(type) {
	case orb.Polygon:
		s := make(Shape, len(v))
		for i, r := range v {
			s[i] = e.ProjectRing(r)
		}
		return []Shape{s}
	case orb.MultiPolygon:
		var out []Shape
		for _, p := range v {
			out = append(out, e.ProjectGeometry(p)...)
		}
		return out
	case orb.Collection:
		var out []Shape
		for _, m := range v {
			out = append(out, e.ProjectGeometry(m)...)
		}
		return out
	}
	return nil
}

// EarthRadius is the mean radius of the Earth in meters.
const EarthRadius = 6_371_000.0

// ToSphere places lat/lon on a sphere of the given radius.
func ToSphere(lat, lon, radius float64) Vec3 {
	phi := (90 - lat) * math.Pi / 180
	theta := (lon + 180) * math.Pi / 180
	return Vec3{
		X: -radius * math.Sin(phi) * math.Cos(theta),
		Y: radius * math.Cos(phi),
		Z: radius * math.Sin(phi) * math.Sin(theta),
	}
}
