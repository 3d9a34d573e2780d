package globe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/palette"
	"github.com/ChicagoDave/popglobe/pkg/scene"
	"github.com/ChicagoDave/popglobe/pkg/visibility"
)

// MinCityPopulation is the smallest population kept when parsing cities.
const MinCityPopulation = 100_000

var cityMarkerFill = palette.RGBA{R: 0xcb, G: 0xe4, B: 0xff, A: 235}

// ErrInvalidCities is returned for a document without a features array.
var ErrInvalidCities = errors.New("invalid cities GeoJSON: missing features array")

type rawCities struct {
	Features *[]rawCity `json:"features"`
}

type rawCity struct {
	Geometry *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// ParseCities reads a GeoJSON point collection. Features without a Point
// geometry of at least two coordinates, or with fewer than 100,000
// inhabitants, are dropped. pop_max is preferred over population.
func ParseCities(r io.Reader) ([]*hierarchy.City, error) {
	var doc rawCities
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing cities: %w", err)
	}
	if doc.Features == nil {
		return nil, ErrInvalidCities
	}

	var out []*hierarchy.City
	for _, f := range *doc.Features {
		coords, ok := pointCoordinates(f)
		if !ok {
			continue
		}
		pop := firstNumber(f.Properties, "pop_max", "population")
		if math.IsNaN(pop) || math.IsInf(pop, 0) || pop < MinCityPopulation {
			continue
		}
		out = append(out, &hierarchy.City{
			Place: hierarchy.Place{
				Name:       firstString(f.Properties, "Unknown City", "name", "nameascii"),
				Population: int64(math.Round(pop)),
				Lat:        coords[1],
				Lon:        coords[0],
			},
			Region: firstString(f.Properties, "", "adm0name", "sov0name"),
			Admin:  firstString(f.Properties, "", "adm1name"),
		})
	}
	return out, nil
}

// pointCoordinates returns the position of a Point feature. Other geometry
// types carry nested arrays and are skipped before decoding.
func pointCoordinates(f rawCity) ([]float64, bool) {
	if f.Geometry == nil || f.Geometry.Type != "Point" {
		return nil, false
	}
	var coords []float64
	if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil || len(coords) < 2 {
		return nil, false
	}
	return coords, true
}

// firstNumber returns the first set property among keys as a number. Zero
// and empty values count as unset; unparseable strings give NaN.
func firstNumber(props map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := props[k].(type) {
		case float64:
			if v != 0 {
				return v
			}
		case string:
			if v == "" {
				continue
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return math.NaN()
			}
			return n
		}
	}
	return 0
}

func firstString(props map[string]any, fallback string, keys ...string) string {
	for _, k := range keys {
		if s, ok := props[k].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// CityPixelSize returns the marker size of a city.
func CityPixelSize(population int64) float64 {
	switch {
	case population >= 5_000_000:
		return 7
	case population >= 500_000:
		return 5
	}
	return 4
}

type cityMarker struct {
	handle     scene.Handle
	population int64
}

// CityLayer draws city markers and thins them out by camera height.
type CityLayer struct {
	env    Env
	cities []*hierarchy.City

	mu      sync.Mutex
	markers []cityMarker
	minPop  int64
}

// NewCityLayer creates a marker per city. All markers start visible until
// the first Refresh.
func NewCityLayer(env Env, cities []*hierarchy.City) *CityLayer {
	env.init()
	l := &CityLayer{env: env, cities: cities}
	for _, c := range cities {
		f := geojson.NewFeature(orb.Point{c.Lon, c.Lat})
		f.Properties["name"] = c.Name
		f.Properties["population"] = c.Population
		h := env.Surface.CreateGeometry(scene.LayerCities, f, scene.Style{
			Fill:      cityMarkerFill,
			Outline:   true,
			PixelSize: CityPixelSize(c.Population),
		})
		env.reg.add(h, c)
		l.markers = append(l.markers, cityMarker{handle: h, population: c.Population})
	}
	return l
}

// Cities returns the parsed cities behind the layer.
func (l *CityLayer) Cities() []*hierarchy.City {
	return l.cities
}

// Refresh shows the cities large enough for height and returns how many
// are visible.
func (l *CityLayer) Refresh(height float64) int {
	minPop := visibility.MinCityPopulation(height)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.minPop = minPop
	shown := 0
	for _, m := range l.markers {
		visible := m.population >= minPop
		if visible {
			shown++
		}
		l.env.Surface.SetVisible(m.handle, visible)
	}
	return shown
}

// MinPopulation returns the threshold applied by the last Refresh.
func (l *CityLayer) MinPopulation() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minPop
}

// Destroy removes every city marker.
func (l *CityLayer) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.markers {
		l.env.reg.remove(m.handle)
		l.env.Surface.Remove(m.handle)
	}
	l.markers = nil
}
