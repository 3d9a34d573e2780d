package palette

import (
	"fmt"
	"math"
	"strconv"
)

// MarkerSize returns a marker's pixel size: base plus range scaled by
// (population/maxPopulation)^0.4.
func MarkerSize(population, maxPopulation int64, base, spread float64) float64 {
	if maxPopulation <= 0 || population <= 0 {
		return base
	}
	r := float64(population) / float64(maxPopulation)
	return base + math.Pow(r, 0.4)*spread
}

// Tier is a coarse population band used for badges and legends.
type Tier struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var tiers = []struct {
	min  int64
	tier Tier
}{
	{20_000_000, Tier{"Mega", "#e74c3c"}},
	{10_000_000, Tier{"Large", "#e67e22"}},
	{5_000_000, Tier{"Medium", "#b7950b"}},
	{1_000_000, Tier{"Small", "#16a085"}},
}

// TierFor returns the tier containing population. Lower bounds are inclusive.
func TierFor(population int64) Tier {
	for _, t := range tiers {
		if population >= t.min {
			return t.tier
		}
	}
	return Tier{"Micro", "#2980b9"}
}

// Format abbreviates a population: 1.42B, 331.0M, 250.5K, 999.
func Format(n int64) string {
	v := float64(n)
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
	return strconv.FormatInt(n, 10)
}
