package scene

import (
	"fmt"
	"math"

	"github.com/ChicagoDave/popglobe/pkg/validation"
)

// ValidateGraph performs structural validation on a scene graph.
// It checks entity integrity, group index consistency, and anchor placement.
func ValidateGraph(g *Graph) *validation.Report {
	r := validation.NewReport()

	if g == nil {
		r.AddError(validation.Result{
			Level:   validation.LevelSpatial,
			Message: "scene graph is nil",
		})
		return r
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	validateEntityIDs(g, r)
	validateGroupIndices(g, r)
	validateGroupMembership(g, r)
	validateAnchors(g, r)
	validateMarkerSizes(g, r)

	return r
}

func validateEntityIDs(g *Graph, r *validation.Report) {
	seen := make(map[Handle]int, len(g.Entities))

	for i, e := range g.Entities {
		if e.ID == "" {
			r.AddError(validation.Result{
				Level:       validation.LevelSpatial,
				Message:     fmt.Sprintf("entity at index %d has empty ID", i),
				Path:        fmt.Sprintf("entities[%d].id", i),
				ActualValue: "",
				Expected:    "non-empty string",
			})
			continue
		}
		if prev, exists := seen[e.ID]; exists {
			r.AddError(validation.Result{
				Level:       validation.LevelSpatial,
				Message:     fmt.Sprintf("duplicate entity ID %q at indices %d and %d", e.ID, prev, i),
				Path:        fmt.Sprintf("entities[%d].id", i),
				ActualValue: string(e.ID),
			})
		}
		seen[e.ID] = i
		if e.Feature == nil {
			r.AddError(validation.Result{
				Level:   validation.LevelSpatial,
				Message: fmt.Sprintf("entity %q has no feature", e.ID),
				Path:    fmt.Sprintf("entities[%d].feature", i),
			})
		}
	}
}

func validateGroupIndices(g *Graph, r *validation.Report) {
	entityIDs := make(map[Handle]bool, len(g.Entities))
	for _, e := range g.Entities {
		entityIDs[e.ID] = true
	}

	checkGroup := func(groupType, groupName string, ids []Handle) {
		for _, id := range ids {
			if !entityIDs[id] {
				r.AddError(validation.Result{
					Level:       validation.LevelSpatial,
					Message:     fmt.Sprintf("group %s.%s references non-existent entity %q", groupType, groupName, id),
					Path:        fmt.Sprintf("groups.%s.%s", groupType, groupName),
					ActualValue: string(id),
					Expected:    "existing entity ID",
				})
			}
		}
	}

	for name, ids := range g.Groups.Layers {
		checkGroup("layers", string(name), ids)
	}
	for name, ids := range g.Groups.EntityTypes {
		checkGroup("entity_types", string(name), ids)
	}
}

func members[K comparable](groups map[K][]Handle) map[K]map[Handle]bool {
	out := make(map[K]map[Handle]bool, len(groups))
	for k, ids := range groups {
		m := make(map[Handle]bool, len(ids))
		for _, id := range ids {
			m[id] = true
		}
		out[k] = m
	}
	return out
}

func validateGroupMembership(g *Graph, r *validation.Report) {
	layerMembers := members(g.Groups.Layers)
	typeMembers := members(g.Groups.EntityTypes)

	for _, e := range g.Entities {
		if e.ID == "" {
			continue
		}

		if !layerMembers[e.Layer][e.ID] {
			r.AddError(validation.Result{
				Level:       validation.LevelSpatial,
				Message:     fmt.Sprintf("entity %q has layer %q but is not in layers group", e.ID, e.Layer),
				Path:        fmt.Sprintf("groups.layers.%s", e.Layer),
				ActualValue: string(e.ID),
			})
		}
		if !typeMembers[e.Type][e.ID] {
			r.AddError(validation.Result{
				Level:       validation.LevelSpatial,
				Message:     fmt.Sprintf("entity %q has type %q but is not in entity_types group", e.ID, e.Type),
				Path:        fmt.Sprintf("groups.entity_types.%s", e.Type),
				ActualValue: string(e.ID),
			})
		}
	}
}

func validateAnchors(g *Graph, r *validation.Report) {
	const tolerance = 1e-6
	for _, e := range g.Entities {
		lon, lat := e.Anchor.Lon(), e.Anchor.Lat()
		if math.IsNaN(lon) || math.IsNaN(lat) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			r.AddError(validation.Result{
				Level:       validation.LevelSpatial,
				Message:     fmt.Sprintf("entity %q anchor (%.4f, %.4f) is off the globe", e.ID, lon, lat),
				Path:        fmt.Sprintf("entities.%s.anchor", e.ID),
				ActualValue: []float64{lon, lat},
			})
			continue
		}
		if d := math.Abs(e.Position.Length() - g.Metadata.Radius); d > tolerance*math.Max(1, g.Metadata.Radius) {
			r.AddWarning(validation.Result{
				Level:       validation.LevelSpatial,
				Message:     fmt.Sprintf("entity %q is %.3g off the globe surface", e.ID, d),
				Path:        fmt.Sprintf("entities.%s.position", e.ID),
				ActualValue: e.Position.Length(),
				Expected:    fmt.Sprintf("%g", g.Metadata.Radius),
			})
		}
	}
}

func validateMarkerSizes(g *Graph, r *validation.Report) {
	for _, id := range g.Groups.EntityTypes[EntityMarker] {
		e := g.index[id]
		if e == nil {
			continue
		}
		if e.Style.PixelSize <= 0 {
			r.AddWarning(validation.Result{
				Level:       validation.LevelSpatial,
				Message:     fmt.Sprintf("marker %q has non-positive pixel size %.2f", e.ID, e.Style.PixelSize),
				Path:        fmt.Sprintf("entities.%s.style.pixel_size", e.ID),
				ActualValue: e.Style.PixelSize,
				Expected:    "pixel size > 0",
			})
		}
	}
}
