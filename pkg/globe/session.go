package globe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/scene"
	"github.com/ChicagoDave/popglobe/pkg/selection"
	"github.com/ChicagoDave/popglobe/pkg/sidebar"
	"github.com/ChicagoDave/popglobe/pkg/topo"
	"github.com/ChicagoDave/popglobe/pkg/visibility"
)

// ErrDisposed is returned by operations on a disposed session.
var ErrDisposed = errors.New("globe session disposed")

// DefaultHeight is the initial camera height.
const DefaultHeight = 20_000_000

// Config assembles a Session.
type Config struct {
	Dataset  *hierarchy.Dataset
	Surface  scene.Surface
	Topology *topo.Cache

	// Counties defaults to a cache over Dataset.CountySource.
	Counties *hierarchy.CountyCache
	// Index defaults to a new index over Surface.
	Index *selection.Index

	WorldURL string
	// CitiesURL is fetched through Fetcher when both are set. A failure is
	// logged and the globe runs without cities.
	CitiesURL string
	Fetcher   topo.Fetcher

	InitialHeight float64
	Logger        *slog.Logger
}

// FlyTo is a camera destination.
type FlyTo struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Height float64 `json:"height"`
}

// State is a snapshot of the interactive state.
type State struct {
	Expanded       []string            `json:"expanded"`
	ExpandedStates []string            `json:"expanded_states"`
	Loading        []string            `json:"loading"`
	Selected       string              `json:"selected"`
	Hovered        string              `json:"hovered"`
	Camera         visibility.Decision `json:"camera"`
}

// Session is one interactive globe: the drawn layers plus expansion,
// selection, hover and camera state. Dispose cancels every pending load;
// results that arrive afterwards are discarded.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	env        Env
	dataset    *hierarchy.Dataset
	counties   *hierarchy.CountyCache
	population *PopulationLayer
	markers    *Markers
	cities     *CityLayer
	boundaries *CountyBoundaries

	mu             sync.Mutex
	expanded       map[string]bool
	expandedStates map[string]bool
	selected       hierarchy.Entity
	hovered        hierarchy.Entity
	camera         visibility.Decision
}

// Open loads every layer onto the surface. Only a world topology failure is
// fatal.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Dataset == nil || cfg.Surface == nil || cfg.Topology == nil {
		return nil, errors.New("globe: dataset, surface and topology cache are required")
	}
	if cfg.Index == nil {
		cfg.Index = selection.New(cfg.Surface)
	}
	if cfg.Counties == nil {
		cfg.Counties = hierarchy.NewCountyCache(cfg.Dataset.CountySource)
	}
	if cfg.InitialHeight <= 0 {
		cfg.InitialHeight = DefaultHeight
	}

	env := Env{
		Surface:   cfg.Surface,
		Index:     cfg.Index,
		Hierarchy: cfg.Dataset.Hierarchy,
		Topology:  cfg.Topology,
		Logger:    cfg.Logger,
	}
	env.init()

	population, err := LoadPopulation(ctx, env, Sources{
		WorldURL:     cfg.WorldURL,
		Subdivisions: cfg.Dataset.Subdivisions,
	})
	if err != nil {
		return nil, err
	}

	var cities []*hierarchy.City
	if cfg.CitiesURL != "" && cfg.Fetcher != nil {
		cities, err = fetchCities(ctx, cfg.Fetcher, cfg.CitiesURL)
		if err != nil {
			env.Logger.Warn("cities unavailable", "url", cfg.CitiesURL, "err", err)
		}
	}

	s := &Session{
		env:            env,
		dataset:        cfg.Dataset,
		counties:       cfg.Counties,
		population:     population,
		markers:        NewMarkers(env),
		cities:         NewCityLayer(env, cities),
		boundaries:     NewCountyBoundaries(env, cfg.Dataset.Counties),
		expanded:       make(map[string]bool),
		expandedStates: make(map[string]bool),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.SetCamera(cfg.InitialHeight)

	env.Logger.Info("globe session open",
		"countries", len(cfg.Dataset.Hierarchy.Countries()),
		"cities", len(cities))
	return s, nil
}

func fetchCities(ctx context.Context, f topo.Fetcher, url string) ([]*hierarchy.City, error) {
	data, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseCities(bytes.NewReader(data))
}

// Dispose tears the session down. It is safe to call more than once.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	s.cancel()
	s.population.Destroy()
	s.markers.Destroy()
	s.cities.Destroy()
	s.boundaries.Destroy()
	s.selected, s.hovered = nil, nil
	s.env.Logger.Info("globe session disposed")
}

// Disposed reports whether Dispose has been called.
func (s *Session) Disposed() bool {
	return s.ctx.Err() != nil
}

// Index returns the selection index of the session.
func (s *Session) Index() *selection.Index { return s.env.Index }

// Hierarchy returns the entity hierarchy the session draws.
func (s *Session) Hierarchy() *hierarchy.Hierarchy { return s.dataset.Hierarchy }

// Counties returns the county cache of the session.
func (s *Session) Counties() *hierarchy.CountyCache { return s.counties }

// bind returns a context cancelled when either ctx or the session ends.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// ToggleCountry flips the expansion of a country and returns the new state.
func (s *Session) ToggleCountry(iso string) (bool, error) {
	if s.Disposed() {
		return false, ErrDisposed
	}
	s.mu.Lock()
	expanded := !s.expanded[iso]
	s.expanded[iso] = expanded
	s.mu.Unlock()

	s.markers.SetCountryExpanded(iso, expanded)
	s.env.Surface.RequestRedraw()
	return expanded, nil
}

// ToggleState flips the expansion of a US state. Expanding a state with
// county data loads its counties once, then draws their markers and
// boundaries. A failed load collapses the state again so the next toggle
// retries.
func (s *Session) ToggleState(ctx context.Context, fips string) (bool, error) {
	if s.Disposed() {
		return false, ErrDisposed
	}
	s.mu.Lock()
	expand := !s.expandedStates[fips]
	s.expandedStates[fips] = expand
	s.mu.Unlock()

	s.markers.SetStateExpanded(fips, expand)
	if !expand {
		s.boundaries.Hide(fips)
		s.env.Surface.RequestRedraw()
		return false, nil
	}
	if !s.counties.Has(fips) {
		s.env.Surface.RequestRedraw()
		return true, nil
	}

	ctx, stop := s.bind(ctx)
	defer stop()

	counties, err := s.counties.Load(ctx, fips)
	if s.Disposed() {
		return true, ErrDisposed
	}
	if err != nil {
		s.env.Logger.Error("county load failed", "fips", fips, "err", err)
		s.mu.Lock()
		s.expandedStates[fips] = false
		s.mu.Unlock()
		s.markers.SetStateExpanded(fips, false)
		return false, fmt.Errorf("loading counties for %s: %w", fips, err)
	}
	s.markers.AddCounties(fips, counties)

	n, err := s.boundaries.Show(ctx, fips, counties)
	switch {
	case s.Disposed():
		return true, ErrDisposed
	case err != nil:
		s.env.Logger.Warn("county boundaries unavailable", "fips", fips, "err", err)
	default:
		s.env.Logger.Debug("counties shown", "fips", fips, "counties", len(counties), "polygons", n)
	}

	// The state may have been collapsed while loading.
	s.mu.Lock()
	still := s.expandedStates[fips]
	s.mu.Unlock()
	if !still {
		s.boundaries.Hide(fips)
	}
	s.env.Surface.RequestRedraw()
	return still, nil
}

// Select highlights e and returns where the camera should fly. A nil
// entity clears the selection and reports false.
func (s *Session) Select(e hierarchy.Entity) (FlyTo, bool) {
	if s.Disposed() {
		return FlyTo{}, false
	}
	if hierarchy.IsNilEntity(e) {
		e = nil
	}
	s.mu.Lock()
	s.selected = e
	s.mu.Unlock()

	s.population.Highlight(e)
	if e == nil {
		return FlyTo{}, false
	}
	p := hierarchy.PlaceOf(e)
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return FlyTo{}, false
	}
	return FlyTo{Lat: p.Lat, Lon: p.Lon, Height: visibility.FlyToHeight(e)}, true
}

// SelectKey selects the entity with the given selection key.
func (s *Session) SelectKey(key string) (hierarchy.Entity, FlyTo, bool) {
	e, ok := s.Resolve(key)
	if !ok {
		s.Select(nil)
		return nil, FlyTo{}, false
	}
	fly, ok := s.Select(e)
	return e, fly, ok
}

// Hover picks the entity under a viewport pixel. changed reports whether it
// differs from the previous hover.
func (s *Session) Hover(x, y float64) (e hierarchy.Entity, changed bool) {
	if s.Disposed() {
		return nil, false
	}
	if h, ok := s.env.Surface.PickAt(x, y); ok {
		e, _ = s.env.reg.lookup(h)
	}
	s.mu.Lock()
	changed = e != s.hovered
	s.hovered = e
	s.mu.Unlock()
	if changed {
		s.env.Surface.RequestRedraw()
	}
	return e, changed
}

// Pick returns the entity under a viewport pixel without changing hover
// state.
func (s *Session) Pick(x, y float64) (hierarchy.Entity, bool) {
	h, ok := s.env.Surface.PickAt(x, y)
	if !ok {
		return nil, false
	}
	return s.env.reg.lookup(h)
}

// SetCamera applies the visibility rules for a camera height.
func (s *Session) SetCamera(height float64) visibility.Decision {
	d := visibility.ForHeight(height)
	if s.Disposed() {
		return d
	}
	s.population.SetSubdivisionsVisible(d.Subdivisions)
	s.env.Surface.SetLayerVisible(scene.LayerSubdivisionMarkers, d.Subdivisions)
	s.env.Surface.SetLayerVisible(scene.LayerBuildings, d.Buildings)
	s.cities.Refresh(height)

	s.mu.Lock()
	s.camera = d
	s.mu.Unlock()
	s.env.Surface.RequestRedraw()
	return d
}

// List builds the sidebar rows for query from the current expansion state.
func (s *Session) List(query string) []sidebar.Item {
	s.mu.Lock()
	expanded := maps.Clone(s.expanded)
	states := maps.Clone(s.expandedStates)
	s.mu.Unlock()

	return sidebar.Build(sidebar.Params{
		Countries:         s.dataset.Hierarchy.Countries(),
		Query:             query,
		ExpandedCountries: expanded,
		ExpandedStates:    states,
		LoadedCounties:    s.counties.Snapshot(),
		HasCountyLoader:   s.counties.Has,
	})
}

// Suggest offers names close to a query that matched nothing.
func (s *Session) Suggest(query string, n int) []string {
	return sidebar.Suggest(s.dataset.Hierarchy.Countries(), query, n)
}

// Resolve finds the entity with a selection key among countries,
// subdivisions, loaded counties and cities.
func (s *Session) Resolve(key string) (hierarchy.Entity, bool) {
	if key == "" {
		return nil, false
	}
	if e, ok := s.env.Index.Entity(key); ok {
		return e, true
	}
	for _, c := range s.dataset.Hierarchy.Countries() {
		if selection.Key(c) == key {
			return c, true
		}
		for _, sub := range c.Subdivisions {
			if selection.Key(sub) == key {
				return sub, true
			}
		}
	}
	for _, counties := range s.counties.Snapshot() {
		for _, c := range counties {
			if selection.Key(c) == key {
				return c, true
			}
		}
	}
	for _, c := range s.cities.Cities() {
		if selection.Key(c) == key {
			return c, true
		}
	}
	return nil, false
}

// State returns a snapshot of the interactive state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Expanded:       trueKeys(s.expanded),
		ExpandedStates: trueKeys(s.expandedStates),
		Selected:       selection.Key(s.selected),
		Hovered:        selection.Key(s.hovered),
		Camera:         s.camera,
	}
	for fips := range s.expandedStates {
		if s.counties.Loading(fips) {
			st.Loading = append(st.Loading, fips)
		}
	}
	slices.Sort(st.Loading)
	return st
}

func trueKeys(m map[string]bool) []string {
	out := []string{}
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
