package topo

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Decode converts the named object of a topology into a GeoJSON feature
// collection. A missing object yields an empty collection, and an object
// that is a single geometry rather than a GeometryCollection decodes to one
// feature. Geometries of
// unsupported type, or that reference arcs that do not exist, are dropped.
// The topology is not modified.
func Decode(t *Topology, objectName string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if t == nil {
		return fc
	}
	obj, ok := t.Objects[objectName]
	if !ok || obj == nil {
		return fc
	}

	d := &decoder{topo: t, arcs: make(map[int]orb.Ring)}

	members := []*Object{obj}
	if obj.Type == TypeGeometryCollection {
		members = obj.Geometries
	}
	for _, g := range members {
		if g == nil {
			continue
		}
		geom := d.geometry(g)
		if geom == nil {
			continue
		}
		fc.Append(&geojson.Feature{
			Type:       "Feature",
			ID:         g.ID,
			Properties: copyProperties(g.Properties),
			Geometry:   geom,
		})
	}
	return fc
}

type decoder struct {
	topo *Topology
	arcs map[int]orb.Ring
}

// arc returns the decoded positions of arc i. Negative indices select arc ^i
// reversed. The returned ring is owned by the caller.
func (d *decoder) arc(i int) (orb.Ring, bool) {
	idx, reverse := i, false
	if i < 0 {
		idx, reverse = ^i, true
	}
	if idx >= len(d.topo.Arcs) {
		return nil, false
	}

	pts, ok := d.arcs[idx]
	if !ok {
		pts, ok = d.decodeArc(d.topo.Arcs[idx])
		if !ok {
			return nil, false
		}
		d.arcs[idx] = pts
	}

	out := make(orb.Ring, len(pts))
	if reverse {
		for j, p := range pts {
			out[len(pts)-1-j] = p
		}
	} else {
		copy(out, pts)
	}
	return out, true
}

func (d *decoder) decodeArc(a Arc) (orb.Ring, bool) {
	out := make(orb.Ring, 0, len(a))
	tr := d.topo.Transform
	var x, y float64
	for _, p := range a {
		if len(p) < 2 {
			return nil, false
		}
		if tr == nil {
			out = append(out, orb.Point{p[0], p[1]})
			continue
		}
		x += p[0]
		y += p[1]
		out = append(out, orb.Point{
			x*tr.Scale[0] + tr.Translate[0],
			y*tr.Scale[1] + tr.Translate[1],
		})
	}
	return out, true
}

// ring concatenates arcs, dropping the first position of every arc after
// the first since it repeats the previous arc's last position.
func (d *decoder) ring(indices []int) (orb.Ring, bool) {
	var out orb.Ring
	for _, i := range indices {
		pts, ok := d.arc(i)
		if !ok {
			return nil, false
		}
		if len(out) > 0 && len(pts) > 0 {
			pts = pts[1:]
		}
		out = append(out, pts...)
	}
	return out, true
}

func (d *decoder) polygon(rings [][]int) (orb.Polygon, bool) {
	poly := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		ring, ok := d.ring(r)
		if !ok {
			return nil, false
		}
		poly = append(poly, ring)
	}
	return poly, true
}

func (d *decoder) geometry(o *Object) orb.Geometry {
	switch o.Type {
	case TypePolygon:
		var rings [][]int
		if err := json.Unmarshal(o.Arcs, &rings); err != nil {
			return nil
		}
		poly, ok := d.polygon(rings)
		if !ok {
			return nil
		}
		return poly

	case TypeMultiPolygon:
		var polys [][][]int
		if err := json.Unmarshal(o.Arcs, &polys); err != nil {
			return nil
		}
		mp := make(orb.MultiPolygon, 0, len(polys))
		for _, rings := range polys {
			poly, ok := d.polygon(rings)
			if !ok {
				return nil
			}
			mp = append(mp, poly)
		}
		return mp

	case TypeGeometryCollection:
		var coll orb.Collection
		for _, child := range o.Geometries {
			if child == nil {
				continue
			}
			if g := d.geometry(child); g != nil {
				coll = append(coll, g)
			}
		}
		if len(coll) == 0 {
			return nil
		}
		return coll
	}
	return nil
}

func copyProperties(p map[string]any) geojson.Properties {
	out := make(geojson.Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
