package topo

import "encoding/json"

// Geometry object types understood by Decode.
const (
	TypePolygon            = "Polygon"
	TypeMultiPolygon       = "MultiPolygon"
	TypeGeometryCollection = "GeometryCollection"
)

// Topology is a TopoJSON document.
type Topology struct {
	Type      string             `json:"type"`
	Arcs      []Arc              `json:"arcs"`
	Objects   map[string]*Object `json:"objects"`
	Transform *Transform         `json:"transform,omitempty"`
	BBox      []float64          `json:"bbox,omitempty"`
}

// Arc is a polyline. With a transform, the first position is quantized
// absolute and the rest are deltas; without one, every position is absolute.
type Arc [][]float64

// Transform maps quantized positions back to user space.
type Transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

// Object is a TopoJSON geometry object. Arcs is kept raw because its
// nesting depth depends on Type.
type Object struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
	Arcs       json.RawMessage `json:"arcs,omitempty"`
	Geometries []*Object       `json:"geometries,omitempty"`
}

// Parse unmarshals a TopoJSON document.
func Parse(data []byte) (*Topology, error) {
	var t Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
