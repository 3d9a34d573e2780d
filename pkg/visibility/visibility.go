// Package visibility decides which globe layers are shown at a given camera
// height. Heights are in meters above the ellipsoid.
package visibility

import "github.com/ChicagoDave/popglobe/pkg/hierarchy"

const (
	// SubdivisionMaxHeight is the height below which subdivision polygons
	// and markers are drawn.
	SubdivisionMaxHeight = 12_000_000
	// BuildingMaxHeight is the height below which building detail is drawn.
	BuildingMaxHeight = 1_800_000
)

// SubdivisionsVisible reports whether subdivisions are drawn at height.
func SubdivisionsVisible(height float64) bool {
	return height < SubdivisionMaxHeight
}

// BuildingsVisible reports whether buildings are drawn at height.
func BuildingsVisible(height float64) bool {
	return height < BuildingMaxHeight
}

// MinCityPopulation returns the smallest city population drawn at height.
// Each bracket includes its upper bound, so exactly 18,000,000 m is still
// in the 500,000 bracket.
func MinCityPopulation(height float64) int64 {
	switch {
	case height > 18_000_000:
		return 5_000_000
	case height > 5_000_000:
		return 500_000
	}
	return 100_000
}

// Decision is the full visibility state for one camera height.
type Decision struct {
	Height            float64 `json:"height"`
	Subdivisions      bool    `json:"subdivisions"`
	Buildings         bool    `json:"buildings"`
	MinCityPopulation int64   `json:"min_city_population"`
}

// ForHeight evaluates every rule at height.
func ForHeight(height float64) Decision {
	return Decision{
		Height:            height,
		Subdivisions:      SubdivisionsVisible(height),
		Buildings:         BuildingsVisible(height),
		MinCityPopulation: MinCityPopulation(height),
	}
}

// FlyToHeight is the camera height used when flying to an entity.
// A nil entity yields 0.
func FlyToHeight(e hierarchy.Entity) float64 {
	if hierarchy.IsNilEntity(e) {
		return 0
	}
	switch e.Kind() {
	case hierarchy.KindCountry:
		return 3_000_000
	case hierarchy.KindSubdivision:
		return 800_000
	case hierarchy.KindCounty:
		return 200_000
	case hierarchy.KindCity:
		return 220_000
	}
	return 1_200_000
}
