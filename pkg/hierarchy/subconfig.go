package hierarchy

import (
	"fmt"
	"slices"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// CodeStrategy selects how a subdivision code is read from a feature.
type CodeStrategy string

const (
	// StrategyProperty reads the feature property named by Property.
	StrategyProperty CodeStrategy = "property"
	// StrategyFeatureID uses the feature id, left padded with zeros to PadWidth.
	StrategyFeatureID CodeStrategy = "feature_id"
	// StrategyISOSuffix reads an ISO 3166-2 code from Property (default
	// "iso_3166_2") and keeps the part after the country prefix.
	StrategyISOSuffix CodeStrategy = "iso_3166_2_suffix"
)

// SubdivisionConfig describes where a country's subdivision boundaries come
// from and how their features are matched to subdivisions.
type SubdivisionConfig struct {
	ISO        string       `yaml:"iso" json:"iso"`
	URL        string       `yaml:"url" json:"url"`
	ObjectName string       `yaml:"object" json:"object"`
	CodeField  CodeField    `yaml:"code_field" json:"code_field"`
	Strategy   CodeStrategy `yaml:"strategy" json:"strategy"`
	Property   string       `yaml:"property,omitempty" json:"property,omitempty"`
	PadWidth   int          `yaml:"pad_width,omitempty" json:"pad_width,omitempty"`

	// SkipName removes the world feature with this topology name, since the
	// subdivisions replace it.
	SkipName string `yaml:"skip_name,omitempty" json:"skip_name,omitempty"`

	// Features whose SkipProperty value is in SkipValues are ignored.
	SkipProperty string   `yaml:"skip_property,omitempty" json:"skip_property,omitempty"`
	SkipValues   []string `yaml:"skip_values,omitempty" json:"skip_values,omitempty"`
}

// CountyConfig locates the county boundary topology.
type CountyConfig struct {
	URL        string `yaml:"url" json:"url"`
	ObjectName string `yaml:"object" json:"object"`
}

// Check reports configuration errors that would make ExtractCode useless.
func (c SubdivisionConfig) Check() error {
	if c.ISO == "" {
		return fmt.Errorf("subdivision config: iso is required")
	}
	if c.ObjectName == "" {
		return fmt.Errorf("subdivision config %s: object is required", c.ISO)
	}
	switch c.CodeField {
	case CodeFIPS, CodeShort:
	default:
		return fmt.Errorf("subdivision config %s: unknown code_field %q", c.ISO, c.CodeField)
	}
	switch c.Strategy {
	case StrategyProperty:
		if c.Property == "" {
			return fmt.Errorf("subdivision config %s: property strategy needs a property", c.ISO)
		}
	case StrategyFeatureID, StrategyISOSuffix:
	default:
		return fmt.Errorf("subdivision config %s: unknown strategy %q", c.ISO, c.Strategy)
	}
	return nil
}

// ExtractCode returns the subdivision code for f, or "" when none applies.
func (c SubdivisionConfig) ExtractCode(f *geojson.Feature) string {
	if f == nil {
		return ""
	}
	switch c.Strategy {
	case StrategyProperty:
		return propertyString(f, c.Property)
	case StrategyFeatureID:
		id, ok := NormalizeID(f.ID)
		if !ok {
			return ""
		}
		if n := c.PadWidth - len(id); n > 0 {
			id = strings.Repeat("0", n) + id
		}
		return id
	case StrategyISOSuffix:
		prop := c.Property
		if prop == "" {
			prop = "iso_3166_2"
		}
		return ISO3166Suffix(propertyString(f, prop))
	}
	return ""
}

// SkipFeature reports whether f should not be rendered.
func (c SubdivisionConfig) SkipFeature(f *geojson.Feature) bool {
	if f == nil {
		return true
	}
	if c.SkipProperty == "" {
		return false
	}
	return slices.Contains(c.SkipValues, propertyString(f, c.SkipProperty))
}

// ISO3166Suffix returns the segment after the country prefix of an ISO
// 3166-2 code ("BR-SP" gives "SP"). A code without a dash is returned whole.
// For codes with several dashes only the second segment is kept.
func ISO3166Suffix(code string) string {
	parts := strings.Split(code, "-")
	if len(parts) < 2 {
		return code
	}
	return parts[1]
}

func propertyString(f *geojson.Feature, key string) string {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := NormalizeID(v); ok {
		return s
	}
	return fmt.Sprint(v)
}
