// Package selection maps hierarchy entities to the scene handles that draw
// them and applies hover/click highlighting.
package selection

import (
	"strconv"
	"sync"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/palette"
	"github.com/ChicagoDave/popglobe/pkg/scene"
)

// Highlight styling applied on top of a handle's base style.
const (
	HighlightMagnitude       = 0.33
	HighlightAlpha     uint8 = 217 // 0.85
)

// Key returns the selection key of e, or "" for nil or unknown entities.
// Keys are unique across the whole country/subdivision/county/city universe.
func Key(e hierarchy.Entity) string {
	if hierarchy.IsNilEntity(e) {
		return ""
	}
	switch v := e.(type) {
	case *hierarchy.Country:
		return "country:" + v.ISO
	case *hierarchy.Subdivision:
		code := v.FIPS
		if code == "" {
			code = v.Code
		}
		if code == "" {
			code = v.Name
		}
		return "subdivision:" + v.ParentISO + ":" + code
	case *hierarchy.County:
		return "county:" + v.FIPS
	case *hierarchy.City:
		return "city:" + v.Name + ":" + formatCoord(v.Lat) + ":" + formatCoord(v.Lon)
	}
	return ""
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// HighlightStyle is the style a highlighted handle is drawn with.
func HighlightStyle(base scene.Style) scene.Style {
	hl := base
	hl.Fill = palette.Brighten(base.Fill, HighlightMagnitude)
	hl.Fill.A = HighlightAlpha
	return hl
}

// Index maps selection keys to scene handles. It is safe for concurrent use.
type Index struct {
	surface scene.Surface

	// OnHighlight, when set, is called after every Highlight with the key
	// and the number of restyled handles.
	OnHighlight func(key string, handles int)

	mu          sync.Mutex
	handles     map[string][]scene.Handle
	entities    map[string]hierarchy.Entity
	base        map[scene.Handle]scene.Style
	highlighted []scene.Handle
	current     string
}

// New creates an empty index that restyles handles on s.
func New(s scene.Surface) *Index {
	return &Index{
		surface:  s,
		handles:  make(map[string][]scene.Handle),
		entities: make(map[string]hierarchy.Entity),
		base:     make(map[scene.Handle]scene.Style),
	}
}

// IndexEntity registers h as drawing e with the given base style. Entities
// without a key and zero handles are ignored.
func (x *Index) IndexEntity(h scene.Handle, e hierarchy.Entity, base scene.Style) {
	key := Key(e)
	if key == "" || h == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.handles[key] = append(x.handles[key], h)
	x.entities[key] = e
	x.base[h] = base
}

// Remove forgets every handle registered under key.
func (x *Index) Remove(key string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, h := range x.handles[key] {
		delete(x.base, h)
	}
	delete(x.handles, key)
	delete(x.entities, key)
	if x.current == key {
		x.highlighted = nil
		x.current = ""
	}
}

// Handles returns a copy of the handles registered under key.
func (x *Index) Handles(key string) []scene.Handle {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]scene.Handle(nil), x.handles[key]...)
}

// Entity returns the entity registered under key.
func (x *Index) Entity(key string) (hierarchy.Entity, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	e, ok := x.entities[key]
	return e, ok
}

// Len returns the number of indexed keys.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.handles)
}

// Highlight clears any current highlight, then restyles every handle
// indexed under e's key. A nil or unindexed entity only clears.
func (x *Index) Highlight(e hierarchy.Entity) {
	key := Key(e)

	x.mu.Lock()
	cleared := x.clearLocked()
	hs := x.handles[key]
	for _, h := range hs {
		x.surface.SetStyle(h, HighlightStyle(x.base[h]))
	}
	if len(hs) > 0 {
		x.highlighted = append([]scene.Handle(nil), hs...)
		x.current = key
	}
	x.mu.Unlock()

	if cleared || len(hs) > 0 {
		x.surface.RequestRedraw()
	}
	if x.OnHighlight != nil {
		x.OnHighlight(key, len(hs))
	}
}

// Clear restores highlighted handles to their base style. Calling it with
// nothing highlighted does nothing.
func (x *Index) Clear() {
	x.mu.Lock()
	cleared := x.clearLocked()
	x.mu.Unlock()
	if cleared {
		x.surface.RequestRedraw()
	}
}

func (x *Index) clearLocked() bool {
	if len(x.highlighted) == 0 {
		return false
	}
	for _, h := range x.highlighted {
		if base, ok := x.base[h]; ok {
			x.surface.SetStyle(h, base)
		}
	}
	x.highlighted = nil
	x.current = ""
	return true
}

// Highlighted returns the key currently highlighted, or "".
func (x *Index) Highlighted() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.current
}
