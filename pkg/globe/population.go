package globe

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/palette"
	"github.com/ChicagoDave/popglobe/pkg/scene"
	"github.com/ChicagoDave/popglobe/pkg/selection"
	"github.com/ChicagoDave/popglobe/pkg/topo"
)

// World topology defaults.
const (
	WorldTopologyURL = "https://cdn.jsdelivr.net/npm/world-atlas@2/countries-110m.json"
	WorldObject      = "countries"
)

// FillAlpha is the alpha of population polygon fills.
const FillAlpha uint8 = 145

// Env holds the collaborators every layer draws with.
type Env struct {
	Surface   scene.Surface
	Index     *selection.Index
	Hierarchy *hierarchy.Hierarchy
	Topology  *topo.Cache
	Logger    *slog.Logger

	reg *registry
}

func (env *Env) init() {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.reg == nil {
		env.reg = newRegistry()
	}
}

// Sources names the topology documents of the population layer.
type Sources struct {
	WorldURL     string
	WorldObject  string
	Subdivisions []hierarchy.SubdivisionConfig
}

func (s Sources) withDefaults() Sources {
	if s.WorldURL == "" {
		s.WorldURL = WorldTopologyURL
	}
	if s.WorldObject == "" {
		s.WorldObject = WorldObject
	}
	return s
}

// PopulationLayer is the set of country and subdivision polygons shaded by
// population.
type PopulationLayer struct {
	env          Env
	countries    []scene.Handle
	subdivisions map[string][]scene.Handle
}

// LoadPopulation fetches the world topology and every configured
// subdivision topology in parallel and draws them. A world failure is
// fatal; a failed subdivision set is logged and skipped. Results arriving
// after ctx is done are discarded.
func LoadPopulation(ctx context.Context, env Env, src Sources) (*PopulationLayer, error) {
	env.init()
	src = src.withDefaults()

	world, subs, err := fetchPopulation(ctx, env, src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := &PopulationLayer{env: env, subdivisions: make(map[string][]scene.Handle)}
	skip := make(map[string]bool)
	for _, cfg := range src.Subdivisions {
		if cfg.SkipName != "" {
			skip[cfg.SkipName] = true
		}
	}
	l.drawCountries(world, skip)
	for i, cfg := range src.Subdivisions {
		if subs[i] == nil {
			continue
		}
		l.drawSubdivisions(cfg, subs[i])
	}
	env.Logger.Info("population layer ready",
		"countries", len(l.countries),
		"subdivision_sets", len(l.subdivisions))
	return l, nil
}

func fetchPopulation(ctx context.Context, env Env, src Sources) (*geojson.FeatureCollection, []*geojson.FeatureCollection, error) {
	g, gctx := errgroup.WithContext(ctx)

	var world *geojson.FeatureCollection
	g.Go(func() error {
		fc, err := env.Topology.Features(gctx, src.WorldURL, src.WorldObject)
		if err != nil {
			return fmt.Errorf("loading world topology: %w", err)
		}
		world = fc
		return nil
	})

	subs := make([]*geojson.FeatureCollection, len(src.Subdivisions))
	for i, cfg := range src.Subdivisions {
		i, cfg := i, cfg
		g.Go(func() error {
			fc, err := env.Topology.Features(gctx, cfg.URL, cfg.ObjectName)
			if err != nil {
				env.Logger.Warn("subdivision topology unavailable", "iso", cfg.ISO, "url", cfg.URL, "err", err)
				return nil
			}
			subs[i] = fc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return world, subs, nil
}

func (l *PopulationLayer) style(population int64) scene.Style {
	return scene.Style{Fill: palette.FillFor(population, l.env.Hierarchy.MaxPopulation(), FillAlpha)}
}

// entityStyle styles e by its population, or as population 1 when e is
// unresolved.
func (l *PopulationLayer) entityStyle(e hierarchy.Entity) scene.Style {
	if hierarchy.IsNilEntity(e) {
		return l.style(1)
	}
	return l.style(hierarchy.PlaceOf(e).Population)
}

func (l *PopulationLayer) drawCountries(world *geojson.FeatureCollection, skip map[string]bool) {
	h := l.env.Hierarchy
	for _, f := range world.Features {
		if f.Geometry == nil {
			continue
		}
		id, _ := hierarchy.NormalizeID(f.ID)
		if name, ok := h.IDName(f.ID); ok && skip[name] {
			continue
		}

		var entity hierarchy.Entity
		if c := h.FindCountryByTopologyID(f.ID); c != nil {
			entity = c
		}
		feature := geojson.NewFeature(f.Geometry)
		feature.ID = id
		feature.Properties["feature_id"] = id

		l.countries = append(l.countries, l.draw(scene.LayerCountries, feature, entity))
	}
}

func (l *PopulationLayer) drawSubdivisions(cfg hierarchy.SubdivisionConfig, fc *geojson.FeatureCollection) {
	byCode := l.env.Hierarchy.SubdivisionIndex(cfg.ISO, cfg.CodeField)
	for i, f := range fc.Features {
		if f.Geometry == nil || cfg.SkipFeature(f) {
			continue
		}
		code := cfg.ExtractCode(f)

		var entity hierarchy.Entity
		if s, ok := byCode[code]; ok && code != "" {
			entity = s
		}

		id, ok := hierarchy.NormalizeID(f.ID)
		if !ok {
			id = code
		}
		if id == "" {
			id = strconv.Itoa(i)
		}
		feature := geojson.NewFeature(f.Geometry)
		feature.ID = cfg.ISO + ":" + id
		feature.Properties["feature_id"] = feature.ID
		feature.Properties["code"] = code

		h := l.draw(scene.LayerSubdivisions, feature, entity)
		l.subdivisions[cfg.ISO] = append(l.subdivisions[cfg.ISO], h)
	}
}

func (l *PopulationLayer) draw(layer scene.Layer, f *geojson.Feature, e hierarchy.Entity) scene.Handle {
	style := l.entityStyle(e)
	h := l.env.Surface.CreateGeometry(layer, f, style)
	if !hierarchy.IsNilEntity(e) {
		l.env.Index.IndexEntity(h, e, style)
		l.env.reg.add(h, e)
	}
	return h
}

// Countries returns the handles of the country polygons.
func (l *PopulationLayer) Countries() []scene.Handle {
	return append([]scene.Handle(nil), l.countries...)
}

// Subdivisions returns the handles of the subdivision polygons of iso.
func (l *PopulationLayer) Subdivisions(iso string) []scene.Handle {
	return append([]scene.Handle(nil), l.subdivisions[iso]...)
}

// SetSubdivisionsVisible shows or hides every subdivision polygon.
func (l *PopulationLayer) SetSubdivisionsVisible(show bool) {
	l.env.Surface.SetLayerVisible(scene.LayerSubdivisions, show)
}

// Highlight highlights the polygons of e, clearing any previous highlight.
func (l *PopulationLayer) Highlight(e hierarchy.Entity) {
	l.env.Index.Highlight(e)
}

// Destroy clears the highlight and removes every polygon from the surface.
func (l *PopulationLayer) Destroy() {
	l.env.Index.Clear()
	remove := func(hs []scene.Handle) {
		for _, h := range hs {
			if e, ok := l.env.reg.lookup(h); ok {
				l.env.Index.Remove(selection.Key(e))
			}
			l.env.reg.remove(h)
			l.env.Surface.Remove(h)
		}
	}
	remove(l.countries)
	for _, hs := range l.subdivisions {
		remove(hs)
	}
	l.countries = nil
	l.subdivisions = make(map[string][]scene.Handle)
}
