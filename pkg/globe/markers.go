package globe

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/palette"
	"github.com/ChicagoDave/popglobe/pkg/scene"
)

// Marker colors per level.
var (
	countryMarkerFill     = palette.RGBA{R: 0xf0, G: 0xf7, B: 0xff, A: 153}
	subdivisionMarkerFill = palette.RGBA{R: 0x8b, G: 0xc8, B: 0xff, A: 140}
	countyMarkerFill      = palette.RGBA{R: 0xb5, G: 0xdd, B: 0xff, A: 143}
)

// Markers holds the point markers of countries, subdivisions and counties.
// Country markers are always shown; subdivision markers follow country
// expansion and county markers follow state expansion.
type Markers struct {
	env Env
	max int64

	mu              sync.Mutex
	countries       []scene.Handle
	subdivisions    map[string][]scene.Handle
	counties        map[string][]scene.Handle
	expandedCountry map[string]bool
	expandedState   map[string]bool
	destroyed       bool
}

// NewMarkers creates a marker for every country and subdivision of the
// hierarchy.
func NewMarkers(env Env) *Markers {
	env.init()
	m := &Markers{
		env:             env,
		max:             env.Hierarchy.MaxPopulation(),
		subdivisions:    make(map[string][]scene.Handle),
		counties:        make(map[string][]scene.Handle),
		expandedCountry: make(map[string]bool),
		expandedState:   make(map[string]bool),
	}
	for _, c := range env.Hierarchy.Countries() {
		m.countries = append(m.countries, m.add(scene.LayerCountryMarkers, c, countryMarkerFill, 6, 11, true))
		for _, s := range c.Subdivisions {
			h := m.add(scene.LayerSubdivisionMarkers, s, subdivisionMarkerFill, 4, 8, false)
			m.subdivisions[c.ISO] = append(m.subdivisions[c.ISO], h)
		}
	}
	return m
}

func (m *Markers) add(layer scene.Layer, e hierarchy.Entity, fill palette.RGBA, base, spread float64, visible bool) scene.Handle {
	p := hierarchy.PlaceOf(e)
	f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
	f.Properties["name"] = p.Name
	f.Properties["kind"] = string(e.Kind())
	style := scene.Style{Fill: fill, Outline: true, PixelSize: palette.MarkerSize(p.Population, m.max, base, spread)}

	h := m.env.Surface.CreateGeometry(layer, f, style)
	if !visible {
		m.env.Surface.SetVisible(h, false)
	}
	m.env.reg.add(h, e)
	return h
}

// SetCountryExpanded shows or hides the subdivision markers of iso.
func (m *Markers) SetCountryExpanded(iso string, expanded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expandedCountry[iso] = expanded
	for _, h := range m.subdivisions[iso] {
		m.env.Surface.SetVisible(h, expanded)
	}
}

// SetStateExpanded shows or hides the county markers of a state.
func (m *Markers) SetStateExpanded(fips string, expanded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expandedState[fips] = expanded
	for _, h := range m.counties[fips] {
		m.env.Surface.SetVisible(h, expanded)
	}
}

// AddCounties creates the county markers of a state once. They start
// visible only if the state is expanded.
func (m *Markers) AddCounties(fips string, counties []*hierarchy.County) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counties[fips]; ok || len(counties) == 0 || m.destroyed {
		return
	}
	hs := make([]scene.Handle, 0, len(counties))
	for _, c := range counties {
		hs = append(hs, m.add(scene.LayerCountyMarkers, c, countyMarkerFill, 3, 7, m.expandedState[fips]))
	}
	m.counties[fips] = hs
}

// Counties returns the county marker handles of a state.
func (m *Markers) Counties(fips string) []scene.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scene.Handle(nil), m.counties[fips]...)
}

// Subdivisions returns the subdivision marker handles of a country.
func (m *Markers) Subdivisions(iso string) []scene.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scene.Handle(nil), m.subdivisions[iso]...)
}

// Destroy removes every marker.
func (m *Markers) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	remove := func(hs []scene.Handle) {
		for _, h := range hs {
			m.env.reg.remove(h)
			m.env.Surface.Remove(h)
		}
	}
	remove(m.countries)
	for _, hs := range m.subdivisions {
		remove(hs)
	}
	for _, hs := range m.counties {
		remove(hs)
	}
	m.countries = nil
	m.subdivisions = make(map[string][]scene.Handle)
	m.counties = make(map[string][]scene.Handle)
	m.destroyed = true
}
