package scene

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ChicagoDave/popglobe/pkg/geo"
	"github.com/ChicagoDave/popglobe/pkg/palette"
)

// Handle identifies a geometry created on a Surface. The zero Handle means
// nothing was created.
type Handle string

// Layer groups geometry that is shown and hidden together.
type Layer string

const (
	LayerCountries          Layer = "countries"
	LayerSubdivisions       Layer = "subdivisions"
	LayerCounties           Layer = "counties"
	LayerCountryMarkers     Layer = "country_markers"
	LayerSubdivisionMarkers Layer = "subdivision_markers"
	LayerCountyMarkers      Layer = "county_markers"
	LayerCities             Layer = "cities"
	LayerBuildings          Layer = "buildings"
)

// EntityType identifies the kind of geometry.
type EntityType string

const (
	EntityPolygon EntityType = "polygon"
	EntityMarker  EntityType = "marker"
)

// Style is the visual state of a geometry.
type Style struct {
	Fill      palette.RGBA `json:"fill"`
	Outline   bool         `json:"outline,omitempty"`
	PixelSize float64      `json:"pixel_size,omitempty"`
}

// Surface is the rendering backend the globe draws onto.
type Surface interface {
	CreateGeometry(layer Layer, f *geojson.Feature, style Style) Handle
	Remove(h Handle)
	SetVisible(h Handle, visible bool)
	SetLayerVisible(layer Layer, visible bool)
	SetStyle(h Handle, style Style)
	// PickAt returns the topmost visible geometry at a viewport pixel.
	PickAt(x, y float64) (Handle, bool)
	RequestRedraw()
}

// BoundingBox is a lon/lat extent.
type BoundingBox struct {
	Min orb.Point `json:"min"`
	Max orb.Point `json:"max"`
}

// Entity is a single element in the scene graph.
type Entity struct {
	ID       Handle           `json:"id"`
	Type     EntityType       `json:"type"`
	Layer    Layer            `json:"layer"`
	Anchor   orb.Point        `json:"anchor"`
	Position geo.Vec3         `json:"position"`
	Style    Style            `json:"style"`
	Visible  bool             `json:"visible"`
	Feature  *geojson.Feature `json:"feature"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// Metadata holds scene-level information.
type Metadata struct {
	GeneratedAt  string         `json:"generated_at"`
	Bounds       BoundingBox    `json:"bounds"`
	Radius       float64        `json:"radius"`
	Viewport     Viewport       `json:"viewport"`
	HiddenLayers map[Layer]bool `json:"hidden_layers"`
	Redraws      int            `json:"redraws"`
}

// Viewport is the pixel size PickAt coordinates refer to.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Groups organizes entity IDs by various axes for fast filtering.
type Groups struct {
	Layers      map[Layer][]Handle      `json:"layers"`
	EntityTypes map[EntityType][]Handle `json:"entity_types"`
}
