package scene

import (
	"fmt"
	"testing"

	"github.com/ChicagoDave/popglobe/pkg/geo"
)

// populatedGraph builds a globe-sized scene: a grid of polygons plus n
// markers.
func populatedGraph(n int) *Graph {
	g := NewGraph(1, geo.DefaultTexture)
	for lon := -180.0; lon < 180; lon += 10 {
		for lat := -80.0; lat < 80; lat += 10 {
			g.CreateGeometry(LayerCountries, squareFeature(lon, lat, 10), fill)
		}
	}
	for i := 0; i < n; i++ {
		lon := float64(i%360) - 180
		lat := float64(i%160) - 80
		g.CreateGeometry(LayerCities, markerFeature(lon, lat), Style{PixelSize: 6})
	}
	return g
}

func BenchmarkPickAt(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		g := populatedGraph(n)
		b.Run(fmt.Sprintf("markers=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				g.PickAt(float64(i%4096), float64(i%2048))
			}
		})
	}
}

func BenchmarkCreateGeometry(b *testing.B) {
	g := NewGraph(1, geo.DefaultTexture)
	f := squareFeature(0, 0, 10)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g.CreateGeometry(LayerCountries, f, fill)
	}
}
