package globe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/palette"
	"github.com/ChicagoDave/popglobe/pkg/scene"
)

// CountyBoundaries draws county polygons for expanded states from the
// shared county topology.
type CountyBoundaries struct {
	env Env
	cfg hierarchy.CountyConfig

	mu        sync.Mutex
	states    map[string][]scene.Handle
	destroyed bool
}

// NewCountyBoundaries creates an empty boundary layer reading cfg.
func NewCountyBoundaries(env Env, cfg hierarchy.CountyConfig) *CountyBoundaries {
	env.init()
	return &CountyBoundaries{env: env, cfg: cfg, states: make(map[string][]scene.Handle)}
}

// Enabled reports whether a county topology is configured.
func (b *CountyBoundaries) Enabled() bool {
	return b.cfg.URL != "" && b.cfg.ObjectName != ""
}

// Show draws the county polygons of a state the first time it is called for
// that state and makes them visible. Features are matched to counties by
// five digit FIPS id; unmatched features are drawn unindexed.
func (b *CountyBoundaries) Show(ctx context.Context, fips string, counties []*hierarchy.County) (int, error) {
	if !b.Enabled() {
		return 0, nil
	}

	b.mu.Lock()
	hs, drawn := b.states[fips]
	b.mu.Unlock()
	if drawn {
		b.setVisible(hs, true)
		return len(hs), nil
	}

	fc, err := b.env.Topology.Features(ctx, b.cfg.URL, b.cfg.ObjectName)
	if err != nil {
		return 0, fmt.Errorf("loading county topology for %s: %w", fips, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b.destroyed {
		return 0, ErrDisposed
	}
	if hs, ok := b.states[fips]; ok {
		b.setVisible(hs, true)
		return len(hs), nil
	}
	hs = b.draw(fips, fc, counties)
	b.states[fips] = hs
	return len(hs), nil
}

func (b *CountyBoundaries) draw(fips string, fc *geojson.FeatureCollection, counties []*hierarchy.County) []scene.Handle {
	byFIPS := make(map[string]*hierarchy.County, len(counties))
	var maxPop int64
	for _, c := range counties {
		byFIPS[c.FIPS] = c
		maxPop = max(maxPop, c.Population)
	}

	var hs []scene.Handle
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		id, ok := countyID(f.ID)
		if !ok || !strings.HasPrefix(id, fips) {
			continue
		}
		feature := geojson.NewFeature(f.Geometry)
		feature.ID = id
		if name, ok := f.Properties["name"]; ok {
			feature.Properties["name"] = name
		}

		c := byFIPS[id]
		var pop int64 = 1
		if c != nil {
			pop = c.Population
		}
		style := scene.Style{Fill: palette.FillFor(pop, maxPop, FillAlpha)}
		h := b.env.Surface.CreateGeometry(scene.LayerCounties, feature, style)
		if c != nil {
			b.env.Index.IndexEntity(h, c, style)
			b.env.reg.add(h, c)
		}
		hs = append(hs, h)
	}
	return hs
}

// countyID normalizes a county feature id to five digits.
func countyID(id any) (string, bool) {
	s, ok := hierarchy.NormalizeID(id)
	if !ok || s == "" {
		return "", false
	}
	if n := 5 - len(s); n > 0 {
		s = strings.Repeat("0", n) + s
	}
	return s, true
}

// Hide hides the county polygons of a state.
func (b *CountyBoundaries) Hide(fips string) {
	b.mu.Lock()
	hs := b.states[fips]
	b.mu.Unlock()
	b.setVisible(hs, false)
}

func (b *CountyBoundaries) setVisible(hs []scene.Handle, visible bool) {
	for _, h := range hs {
		b.env.Surface.SetVisible(h, visible)
	}
}

// Handles returns the polygon handles drawn for a state.
func (b *CountyBoundaries) Handles(fips string) []scene.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]scene.Handle(nil), b.states[fips]...)
}

// Destroy removes every county polygon.
func (b *CountyBoundaries) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, hs := range b.states {
		for _, h := range hs {
			b.env.reg.remove(h)
			b.env.Surface.Remove(h)
		}
	}
	b.states = make(map[string][]scene.Handle)
	b.destroyed = true
}
