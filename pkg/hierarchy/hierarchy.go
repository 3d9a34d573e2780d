package hierarchy

import (
	"strconv"
	"strings"
)

// Hierarchy is the static country and subdivision tree. It is immutable
// after construction and safe for concurrent reads.
type Hierarchy struct {
	countries []*Country
	byISO     map[string]*Country
	idNames   map[string]string

	maxPopulation   int64
	worldPopulation int64
}

// New builds a hierarchy from countries and a topology id to name table.
// Each subdivision's ParentISO is set from its owning country.
func New(countries []*Country, idNames map[string]string) *Hierarchy {
	h := &Hierarchy{
		countries: countries,
		byISO:     make(map[string]*Country, len(countries)),
		idNames:   idNames,
	}
	if h.idNames == nil {
		h.idNames = map[string]string{}
	}
	for _, c := range countries {
		if _, dup := h.byISO[c.ISO]; !dup {
			h.byISO[c.ISO] = c
		}
		for _, s := range c.Subdivisions {
			s.ParentISO = c.ISO
		}
		if c.Population > h.maxPopulation {
			h.maxPopulation = c.Population
		}
		h.worldPopulation += c.Population
	}
	return h
}

// Countries returns every country in load order.
func (h *Hierarchy) Countries() []*Country {
	return h.countries
}

// Country looks up a country by ISO code.
func (h *Hierarchy) Country(iso string) (*Country, bool) {
	c, ok := h.byISO[iso]
	return c, ok
}

// MaxPopulation is the largest country population.
func (h *Hierarchy) MaxPopulation() int64 { return h.maxPopulation }

// WorldPopulation is the sum of all country populations.
func (h *Hierarchy) WorldPopulation() int64 { return h.worldPopulation }

// IDName returns the topology name registered for a feature id.
func (h *Hierarchy) IDName(id any) (string, bool) {
	key, ok := NormalizeID(id)
	if !ok {
		return "", false
	}
	name, ok := h.idNames[key]
	return name, ok
}

// FindCountryByTopologyID resolves a world topology feature id to a country
// by way of the id table and a case-insensitive alias scan. It returns nil
// when nothing matches.
func (h *Hierarchy) FindCountryByTopologyID(id any) *Country {
	name, ok := h.IDName(id)
	if !ok {
		return nil
	}
	for _, c := range h.countries {
		for _, a := range c.Aliases {
			if strings.EqualFold(a, name) {
				return c
			}
		}
	}
	return nil
}

// SubdivisionIndex maps the given code field of every subdivision of iso to
// its subdivision. Subdivisions without a value for the field are skipped.
func (h *Hierarchy) SubdivisionIndex(iso string, field CodeField) map[string]*Subdivision {
	out := make(map[string]*Subdivision)
	c, ok := h.byISO[iso]
	if !ok {
		return out
	}
	for _, s := range c.Subdivisions {
		if code := s.CodeFor(field); code != "" {
			out[code] = s
		}
	}
	return out
}

// StateByFIPS returns the USA subdivision with the given state FIPS.
func (h *Hierarchy) StateByFIPS(fips string) (*Subdivision, bool) {
	s, ok := h.SubdivisionIndex("USA", CodeFIPS)[fips]
	return s, ok
}

// NormalizeID converts a decoded topology id to its string form. JSON
// numbers print without a fractional part, as String() does in JavaScript.
func NormalizeID(id any) (string, bool) {
	switch v := id.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}
