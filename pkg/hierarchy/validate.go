package hierarchy

import (
	"fmt"
	"strings"

	"github.com/ChicagoDave/popglobe/pkg/validation"
)

// Validate checks the dataset invariants: unique ISO and FIPS codes,
// resolvable parents, coordinate ranges, non-empty aliases and positive
// populations. counties maps state FIPS to loaded counties and may be nil.
func Validate(h *Hierarchy, counties map[string][]*County) *validation.Report {
	r := validation.NewReport()
	if h == nil {
		r.AddError(validation.Result{
			Level:   validation.LevelSchema,
			Message: "hierarchy is nil",
		})
		return r
	}

	validateCountries(h, r)
	validateSubdivisions(h, r)
	validateCounties(h, counties, r)
	return r
}

func validateCountries(h *Hierarchy, r *validation.Report) {
	seen := make(map[string]int, len(h.countries))
	for i, c := range h.countries {
		path := fmt.Sprintf("countries[%d]", i)
		if c.ISO == "" {
			r.AddError(validation.Result{
				Level:    validation.LevelSchema,
				Message:  fmt.Sprintf("country %q has no ISO code", c.Name),
				Path:     path + ".iso",
				Expected: "ISO 3166-1 alpha-3 code",
			})
		} else if prev, dup := seen[c.ISO]; dup {
			r.AddError(validation.Result{
				Level:        validation.LevelReference,
				Message:      fmt.Sprintf("duplicate ISO code %q at countries[%d] and countries[%d]", c.ISO, prev, i),
				Path:         path + ".iso",
				ActualValue:  c.ISO,
				ConflictWith: fmt.Sprintf("countries[%d]", prev),
			})
		} else {
			seen[c.ISO] = i
		}

		if len(c.Aliases) == 0 {
			r.AddError(validation.Result{
				Level:       validation.LevelSchema,
				Message:     fmt.Sprintf("country %s has no aliases", c.ISO),
				Path:        path + ".aliases",
				Expected:    "at least 1 alias",
				Suggestions: []string{fmt.Sprintf("Add the topology name for %s as an alias", c.Name)},
			})
		}
		if c.Population < 0 {
			r.AddError(validation.Result{
				Level:       validation.LevelSchema,
				Message:     fmt.Sprintf("country %s has negative population", c.ISO),
				Path:        path + ".population",
				ActualValue: c.Population,
				Expected:    ">= 0",
			})
		}
		checkCoords(r, path, &c.Place)
	}

	aliased := make(map[string]bool)
	for _, c := range h.countries {
		for _, a := range c.Aliases {
			aliased[strings.ToLower(a)] = true
		}
	}
	for id, name := range h.idNames {
		if !aliased[strings.ToLower(name)] {
			r.AddInfo(validation.Result{
				Level:       validation.LevelReference,
				Message:     fmt.Sprintf("topology id %s (%s) matches no country alias", id, name),
				Path:        "ids." + id,
				ActualValue: name,
			})
		}
	}
}

func validateSubdivisions(h *Hierarchy, r *validation.Report) {
	for i, c := range h.countries {
		codes := make(map[string]string)
		for j, s := range c.Subdivisions {
			path := fmt.Sprintf("countries[%d].subdivisions[%d]", i, j)
			if _, ok := h.byISO[s.ParentISO]; !ok {
				r.AddError(validation.Result{
					Level:       validation.LevelReference,
					Message:     fmt.Sprintf("subdivision %q references unknown country %q", s.Name, s.ParentISO),
					Path:        path,
					ActualValue: s.ParentISO,
				})
			}
			if s.Population <= 0 {
				r.AddError(validation.Result{
					Level:       validation.LevelSchema,
					Message:     fmt.Sprintf("subdivision %q must have population > 0", s.Name),
					Path:        path + ".population",
					ActualValue: s.Population,
					Expected:    "> 0",
				})
			}
			code := selectionCode(s)
			if prev, dup := codes[code]; dup {
				r.AddError(validation.Result{
					Level:        validation.LevelReference,
					Message:      fmt.Sprintf("subdivisions %q and %q of %s share selection code %q", prev, s.Name, c.ISO, code),
					Path:         path,
					ActualValue:  code,
					ConflictWith: prev,
				})
			} else {
				codes[code] = s.Name
			}
			checkCoords(r, path, &s.Place)
		}
	}
}

func validateCounties(h *Hierarchy, counties map[string][]*County, r *validation.Report) {
	states := h.SubdivisionIndex("USA", CodeFIPS)
	seen := make(map[string]string)
	for fips, list := range counties {
		if _, ok := states[fips]; !ok {
			r.AddError(validation.Result{
				Level:       validation.LevelReference,
				Message:     fmt.Sprintf("county data for %s has no matching USA state", fips),
				Path:        "counties." + fips,
				ActualValue: fips,
			})
		}
		for i, c := range list {
			path := fmt.Sprintf("counties.%s[%d]", fips, i)
			if c.ParentFIPS != fips || !strings.HasPrefix(c.FIPS, fips) {
				r.AddError(validation.Result{
					Level:       validation.LevelReference,
					Message:     fmt.Sprintf("county %q (%s) does not belong to state %s", c.Name, c.FIPS, fips),
					Path:        path + ".fips",
					ActualValue: c.FIPS,
					Expected:    fips + "xxx",
				})
			}
			if prev, dup := seen[c.FIPS]; dup {
				r.AddError(validation.Result{
					Level:        validation.LevelReference,
					Message:      fmt.Sprintf("duplicate county FIPS %s", c.FIPS),
					Path:         path + ".fips",
					ActualValue:  c.FIPS,
					ConflictWith: prev,
				})
			} else {
				seen[c.FIPS] = path
			}
			if c.Population <= 0 {
				r.AddWarning(validation.Result{
					Level:       validation.LevelSchema,
					Message:     fmt.Sprintf("county %q has no population", c.Name),
					Path:        path + ".population",
					ActualValue: c.Population,
					Expected:    "> 0",
				})
			}
			checkCoords(r, path, &c.Place)
		}
	}
}

func checkCoords(r *validation.Report, path string, p *Place) {
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		r.AddError(validation.Result{
			Level:       validation.LevelSpatial,
			Message:     fmt.Sprintf("%s has coordinates out of range (%.2f, %.2f)", p.Name, p.Lat, p.Lon),
			Path:        path,
			ActualValue: fmt.Sprintf("%.4f,%.4f", p.Lat, p.Lon),
			Expected:    "lat in [-90,90], lon in [-180,180]",
		})
	}
}

// selectionCode is the subdivision code used in selection keys.
func selectionCode(s *Subdivision) string {
	switch {
	case s.FIPS != "":
		return s.FIPS
	case s.Code != "":
		return s.Code
	}
	return s.Name
}
