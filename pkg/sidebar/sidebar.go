// Package sidebar builds the flattened, searchable country list shown next
// to the globe.
package sidebar

import (
	"sort"
	"strings"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
)

// Depths of list items.
const (
	DepthCountry     = 0
	DepthSubdivision = 1
	DepthCounty      = 2
)

// Item is one row of the list.
type Item struct {
	Entity hierarchy.Entity `json:"entity"`
	Depth  int              `json:"depth"`
}

// Params is the UI state the list is built from.
type Params struct {
	Countries []*hierarchy.Country
	Query     string

	// ExpandedCountries and ExpandedStates are keyed by ISO code and state
	// FIPS respectively.
	ExpandedCountries map[string]bool
	ExpandedStates    map[string]bool
	LoadedCounties    map[string][]*hierarchy.County

	// HasCountyLoader, when set, limits county expansion to states that
	// have county data.
	HasCountyLoader func(fips string) bool
}

// Build flattens the hierarchy into display order. Countries, subdivisions
// and counties are each sorted by population, largest first, with ties kept
// in input order. A non-empty query filters every level and auto-expands
// parents of matching children.
func Build(p Params) []Item {
	q := strings.ToLower(p.Query)

	countries := make([]*hierarchy.Country, 0, len(p.Countries))
	for _, c := range p.Countries {
		if q == "" || Matches(c, q) || HasSubdivisionMatch(c, q) {
			countries = append(countries, c)
		}
	}
	sortByPopulation(countries)

	var list []Item
	for _, c := range countries {
		list = append(list, Item{Entity: c, Depth: DepthCountry})

		showSubs := p.ExpandedCountries[c.ISO] || (q != "" && HasSubdivisionMatch(c, q))
		if !showSubs || len(c.Subdivisions) == 0 {
			continue
		}

		subs := append([]*hierarchy.Subdivision(nil), c.Subdivisions...)
		sortByPopulation(subs)
		for _, s := range subs {
			if q != "" && !Matches(s, q) && !HasCountyMatch(s, q, p.LoadedCounties) {
				continue
			}
			list = append(list, Item{Entity: s, Depth: DepthSubdivision})
			list = appendCounties(list, s, q, p)
		}
	}
	return list
}

func appendCounties(list []Item, s *hierarchy.Subdivision, q string, p Params) []Item {
	if s.ParentISO != "USA" || s.FIPS == "" {
		return list
	}
	if p.HasCountyLoader != nil && !p.HasCountyLoader(s.FIPS) {
		return list
	}
	show := p.ExpandedStates[s.FIPS] || (q != "" && HasCountyMatch(s, q, p.LoadedCounties))
	loaded, ok := p.LoadedCounties[s.FIPS]
	if !show || !ok {
		return list
	}

	counties := append([]*hierarchy.County(nil), loaded...)
	sortByPopulation(counties)
	for _, ct := range counties {
		if q != "" && !Matches(ct, q) {
			continue
		}
		list = append(list, Item{Entity: ct, Depth: DepthCounty})
	}
	return list
}

func sortByPopulation[E hierarchy.Entity](s []E) {
	sort.SliceStable(s, func(i, j int) bool {
		return hierarchy.PlaceOf(s[i]).Population > hierarchy.PlaceOf(s[j]).Population
	})
}

// Matches reports whether the lower-cased query q is a substring of the
// entity's name, region, capital or seat, or of any alias. An empty query
// matches everything.
func Matches(e hierarchy.Entity, q string) bool {
	if q == "" {
		return true
	}
	if hierarchy.IsNilEntity(e) {
		return false
	}
	for _, f := range searchFields(e) {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func searchFields(e hierarchy.Entity) []string {
	switch v := e.(type) {
	case *hierarchy.Country:
		return append([]string{v.Name, v.Region, v.Capital}, v.Aliases...)
	case *hierarchy.Subdivision:
		return []string{v.Name, v.Region, v.Capital}
	case *hierarchy.County:
		return []string{v.Name, v.Seat}
	case *hierarchy.City:
		return []string{v.Name, v.Region, v.Admin}
	}
	return nil
}

// HasSubdivisionMatch reports whether any subdivision of c matches q.
func HasSubdivisionMatch(c *hierarchy.Country, q string) bool {
	for _, s := range c.Subdivisions {
		if Matches(s, q) {
			return true
		}
	}
	return false
}

// HasCountyMatch reports whether a loaded county of the USA state s matches q.
func HasCountyMatch(s *hierarchy.Subdivision, q string, loaded map[string][]*hierarchy.County) bool {
	if s.ParentISO != "USA" || s.FIPS == "" {
		return false
	}
	for _, ct := range loaded[s.FIPS] {
		if Matches(ct, q) {
			return true
		}
	}
	return false
}
