package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ChicagoDave/popglobe/pkg/geo"
)

// markerCellLevel is the S2 level markers are bucketed at (cells of roughly
// 150 km).
const markerCellLevel = 6

// DefaultPickRadius is the marker hit tolerance in pixels.
const DefaultPickRadius = 6.0

// Graph is an in-memory Surface. It keeps every created geometry, answers
// picks against an equirectangular viewport, and notifies listeners on
// redraw. It is safe for concurrent use.
type Graph struct {
	Metadata Metadata
	Entities []*Entity
	Groups   Groups

	viewport   geo.Equirectangular
	pickRadius float64

	mu        sync.RWMutex
	index     map[Handle]*Entity
	shapes    map[Handle][]pickShape
	markers   map[s2.CellID][]Handle
	seq       int
	maxMarker float64
	listeners map[int]func(int)
	nextSub   int
}

type pickShape struct {
	min, max geo.Point2D
	shape    geo.Shape
}

// NewGraph creates an empty scene for a globe of the given radius, picked
// through the given viewport.
func NewGraph(radius float64, viewport geo.Equirectangular) *Graph {
	return &Graph{
		Metadata: Metadata{
			Radius:       radius,
			Viewport:     Viewport{Width: viewport.Width, Height: viewport.Height},
			HiddenLayers: make(map[Layer]bool),
		},
		Entities: []*Entity{},
		Groups: Groups{
			Layers:      make(map[Layer][]Handle),
			EntityTypes: make(map[EntityType][]Handle),
		},
		viewport:   viewport,
		pickRadius: DefaultPickRadius,
		index:      make(map[Handle]*Entity),
		shapes:     make(map[Handle][]pickShape),
		markers:    make(map[s2.CellID][]Handle),
		listeners:  make(map[int]func(int)),
	}
}

// CreateGeometry adds a feature to the scene. Point features become
// markers; polygonal features become polygons. A nil feature or geometry
// yields the zero Handle.
func (g *Graph) CreateGeometry(layer Layer, f *geojson.Feature, style Style) Handle {
	if f == nil || f.Geometry == nil {
		return ""
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	e := &Entity{
		ID:      Handle(fmt.Sprintf("%s-%d", layer, g.seq)),
		Layer:   layer,
		Style:   style,
		Visible: true,
		Feature: f,
	}

	if pt, ok := f.Geometry.(orb.Point); ok {
		e.Type = EntityMarker
		e.Anchor = pt
		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(pt.Lat(), pt.Lon())).Parent(markerCellLevel)
		g.markers[cell] = append(g.markers[cell], e.ID)
		g.maxMarker = math.Max(g.maxMarker, style.PixelSize)
	} else {
		e.Type = EntityPolygon
		shapes := g.viewport.ProjectGeometry(f.Geometry)
		ps := make([]pickShape, 0, len(shapes))
		var largest geo.Polygon
		for _, s := range shapes {
			if len(s) == 0 || s[0].IsEmpty() {
				continue
			}
			lo, hi := s[0].BoundingBox()
			ps = append(ps, pickShape{min: lo, max: hi, shape: s})
			if s[0].Area() > largest.Area() {
				largest = s[0]
			}
		}
		g.shapes[e.ID] = ps
		if largest.Len() > 0 {
			e.Anchor = g.viewport.Invert(largest.Centroid())
		} else {
			e.Anchor = f.Geometry.Bound().Center()
		}
	}
	e.Position = geo.ToSphere(e.Anchor.Lat(), e.Anchor.Lon(), g.Metadata.Radius)

	g.addEntity(e)
	g.extendBounds(f.Geometry.Bound())
	return e.ID
}

func (g *Graph) addEntity(e *Entity) {
	g.Entities = append(g.Entities, e)
	g.index[e.ID] = e
	g.Groups.Layers[e.Layer] = append(g.Groups.Layers[e.Layer], e.ID)
	g.Groups.EntityTypes[e.Type] = append(g.Groups.EntityTypes[e.Type], e.ID)
}

func (g *Graph) extendBounds(b orb.Bound) {
	if len(g.Entities) == 1 {
		g.Metadata.Bounds = BoundingBox{Min: b.Min, Max: b.Max}
		return
	}
	bb := &g.Metadata.Bounds
	bb.Min = orb.Point{math.Min(bb.Min[0], b.Min[0]), math.Min(bb.Min[1], b.Min[1])}
	bb.Max = orb.Point{math.Max(bb.Max[0], b.Max[0]), math.Max(bb.Max[1], b.Max[1])}
}

// Remove deletes a geometry. Unknown handles are ignored.
func (g *Graph) Remove(h Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.index[h]
	if !ok {
		return
	}
	delete(g.index, h)
	delete(g.shapes, h)
	g.Entities = slices.DeleteFunc(g.Entities, func(x *Entity) bool { return x.ID == h })
	g.Groups.Layers[e.Layer] = slices.DeleteFunc(g.Groups.Layers[e.Layer], func(x Handle) bool { return x == h })
	g.Groups.EntityTypes[e.Type] = slices.DeleteFunc(g.Groups.EntityTypes[e.Type], func(x Handle) bool { return x == h })
	if e.Type == EntityMarker {
		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(e.Anchor.Lat(), e.Anchor.Lon())).Parent(markerCellLevel)
		g.markers[cell] = slices.DeleteFunc(g.markers[cell], func(x Handle) bool { return x == h })
	}
}

// SetVisible shows or hides one geometry.
func (g *Graph) SetVisible(h Handle, visible bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.index[h]; ok {
		e.Visible = visible
	}
}

// SetLayerVisible shows or hides a whole layer. Per-geometry visibility is
// kept and applies again once the layer is shown.
func (g *Graph) SetLayerVisible(layer Layer, visible bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if visible {
		delete(g.Metadata.HiddenLayers, layer)
	} else {
		g.Metadata.HiddenLayers[layer] = true
	}
}

// SetStyle replaces a geometry's style.
func (g *Graph) SetStyle(h Handle, style Style) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.index[h]
	if !ok {
		return
	}
	e.Style = style
	if e.Type == EntityMarker {
		g.maxMarker = math.Max(g.maxMarker, style.PixelSize)
	}
}

// Entity returns a copy of the geometry with handle h.
func (g *Graph) Entity(h Handle) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.index[h]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Shown reports whether h exists and is drawn: visible itself and in a
// visible layer.
func (g *Graph) Shown(h Handle) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.index[h]
	return ok && g.shown(e)
}

func (g *Graph) shown(e *Entity) bool {
	return e.Visible && !g.Metadata.HiddenLayers[e.Layer]
}

// Len returns the number of geometries.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.Entities)
}

// PickAt returns the drawn geometry under viewport pixel (x, y). The
// nearest marker within the pick radius wins; otherwise the most recently
// created polygon containing the point.
func (g *Graph) PickAt(x, y float64) (Handle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	px := geo.Pt(x, y)
	if x < 0 || y < 0 || x > g.viewport.Width || y > g.viewport.Height {
		return "", false
	}
	if h, ok := g.pickMarker(px); ok {
		return h, true
	}

	for i := len(g.Entities) - 1; i >= 0; i-- {
		e := g.Entities[i]
		if e.Type != EntityPolygon || !g.shown(e) {
			continue
		}
		for _, ps := range g.shapes[e.ID] {
			if px.X < ps.min.X || px.X > ps.max.X || px.Y < ps.min.Y || px.Y > ps.max.Y {
				continue
			}
			if ps.shape.Contains(px) {
				return e.ID, true
			}
		}
	}
	return "", false
}

func (g *Graph) pickMarker(px geo.Point2D) (Handle, bool) {
	if len(g.markers) == 0 {
		return "", false
	}
	radiusPx := math.Max(g.pickRadius, g.maxMarker/2)
	degPerPx := math.Max(360/g.viewport.Width, 180/g.viewport.Height)

	ll := g.viewport.Invert(px)
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(ll.Lat(), ll.Lon()))
	capRegion := s2.CapFromCenterAngle(center, s1.Angle(radiusPx*degPerPx)*s1.Degree)
	coverer := &s2.RegionCoverer{MinLevel: markerCellLevel, MaxLevel: markerCellLevel, MaxCells: 64}

	var best Handle
	bestDist := math.Inf(1)
	for _, cell := range coverer.Covering(capRegion) {
		for _, h := range g.markers[cell] {
			e := g.index[h]
			if e == nil || !g.shown(e) {
				continue
			}
			r := math.Max(g.pickRadius, e.Style.PixelSize/2)
			d := g.viewport.Project(e.Anchor).Distance(px)
			if d <= r && (d < bestDist || (d == bestDist && h > best)) {
				best, bestDist = h, d
			}
		}
	}
	return best, best != ""
}

// RequestRedraw bumps the redraw counter and notifies listeners.
func (g *Graph) RequestRedraw() {
	g.mu.Lock()
	g.Metadata.Redraws++
	n := g.Metadata.Redraws
	fns := make([]func(int), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

// OnRedraw registers fn to be called with the redraw count after every
// RequestRedraw. The returned func unregisters it.
func (g *Graph) OnRedraw(fn func(seq int)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.listeners[id] = fn
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

// MarshalJSON encodes a consistent snapshot of the graph.
func (g *Graph) MarshalJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	md := g.Metadata
	md.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(struct {
		Metadata Metadata  `json:"metadata"`
		Entities []*Entity `json:"entities"`
		Groups   Groups    `json:"groups"`
	}{md, g.Entities, g.Groups})
}
