// Package hierarchy holds the country, subdivision, county and city data
// rendered on the globe.
package hierarchy

// Kind identifies an entity variant.
type Kind string

const (
	KindCountry     Kind = "country"
	KindSubdivision Kind = "subdivision"
	KindCounty      Kind = "county"
	KindCity        Kind = "city"
)

// Place holds the fields shared by every entity.
type Place struct {
	Name       string  `yaml:"name" json:"name"`
	Population int64   `yaml:"population" json:"population"`
	Lat        float64 `yaml:"lat" json:"lat"`
	Lon        float64 `yaml:"lon" json:"lon"`
}

func (p *Place) place() *Place { return p }

// Entity is one of *Country, *Subdivision, *County or *City.
type Entity interface {
	Kind() Kind
	place() *Place
}

// PlaceOf returns the shared fields of e, or nil for a nil entity.
func PlaceOf(e Entity) *Place {
	if isNil(e) {
		return nil
	}
	return e.place()
}

func isNil(e Entity) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *Country:
		return v == nil
	case *Subdivision:
		return v == nil
	case *County:
		return v == nil
	case *City:
		return v == nil
	}
	return false
}

// IsNilEntity reports whether e is nil or a typed nil pointer.
func IsNilEntity(e Entity) bool { return isNil(e) }

// Country is a sovereign state keyed by ISO 3166-1 alpha-3 code.
type Country struct {
	Place            `yaml:",inline"`
	ISO              string         `yaml:"iso" json:"iso"`
	Capital          string         `yaml:"capital,omitempty" json:"capital,omitempty"`
	Region           string         `yaml:"region,omitempty" json:"region,omitempty"`
	Aliases          []string       `yaml:"aliases" json:"aliases"`
	SubdivisionLabel string         `yaml:"subdivision_label,omitempty" json:"subdivision_label,omitempty"`
	Subdivisions     []*Subdivision `yaml:"subdivisions,omitempty" json:"subdivisions,omitempty"`
}

func (*Country) Kind() Kind { return KindCountry }

// Subdivision is a first-level administrative division.
type Subdivision struct {
	Place     `yaml:",inline"`
	ParentISO string  `yaml:"-" json:"parent_iso"`
	FIPS      string  `yaml:"fp,omitempty" json:"fp,omitempty"`
	Code      string  `yaml:"sc,omitempty" json:"sc,omitempty"`
	Region    string  `yaml:"region,omitempty" json:"region,omitempty"`
	Capital   string  `yaml:"capital,omitempty" json:"capital,omitempty"`
	Density   float64 `yaml:"density,omitempty" json:"density,omitempty"`
	AreaKm2   float64 `yaml:"area_km2,omitempty" json:"area_km2,omitempty"`
	MedianAge float64 `yaml:"median_age,omitempty" json:"median_age,omitempty"`
	Change    float64 `yaml:"change_pct,omitempty" json:"change_pct,omitempty"`
}

func (*Subdivision) Kind() Kind { return KindSubdivision }

// CodeField names the subdivision code matched against topology features.
type CodeField string

const (
	CodeFIPS  CodeField = "fp"
	CodeShort CodeField = "sc"
)

// CodeFor returns the subdivision's value for field.
func (s *Subdivision) CodeFor(field CodeField) string {
	switch field {
	case CodeFIPS:
		return s.FIPS
	case CodeShort:
		return s.Code
	}
	return ""
}

// County is a US county keyed by its five digit FIPS code.
type County struct {
	Place      `yaml:",inline"`
	FIPS       string `yaml:"fips" json:"fips"`
	ParentFIPS string `yaml:"parent_fips" json:"parent_fips"`
	Seat       string `yaml:"seat,omitempty" json:"seat,omitempty"`
}

func (*County) Kind() Kind { return KindCounty }

// City is a populated place from the cities dataset.
type City struct {
	Place  `yaml:",inline"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	Admin  string `yaml:"admin,omitempty" json:"admin,omitempty"`
}

func (*City) Kind() Kind { return KindCity }
