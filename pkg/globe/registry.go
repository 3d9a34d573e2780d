// Package globe builds the population globe on a scene.Surface: country and
// subdivision polygons, markers, cities and county boundaries, and the
// interactive Session that ties them to the sidebar.
package globe

import (
	"sync"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/scene"
)

// registry remembers which entity every pickable handle draws.
type registry struct {
	mu      sync.RWMutex
	handles map[scene.Handle]hierarchy.Entity
}

func newRegistry() *registry {
	return &registry{handles: make(map[scene.Handle]hierarchy.Entity)}
}

func (r *registry) add(h scene.Handle, e hierarchy.Entity) {
	if h == "" || hierarchy.IsNilEntity(e) {
		return
	}
	r.mu.Lock()
	r.handles[h] = e
	r.mu.Unlock()
}

func (r *registry) remove(h scene.Handle) {
	r.mu.Lock()
	delete(r.handles, h)
	r.mu.Unlock()
}

func (r *registry) lookup(h scene.Handle) (hierarchy.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.handles[h]
	return e, ok
}
