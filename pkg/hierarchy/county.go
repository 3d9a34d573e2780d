package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// CountySource loads the counties of one US state.
type CountySource interface {
	// Has reports whether counties can be loaded for the state.
	Has(fips string) bool
	LoadCounties(ctx context.Context, fips string) ([]*County, error)
}

// ErrNoCountyData is returned for a state without a county module.
var ErrNoCountyData = errors.New("no county data for state")

// FSCountySource reads counties/<fips>.yaml files from a filesystem. Each
// file holds a single top-level key COUNTIES_<fips> listing the counties.
type FSCountySource struct {
	FS  fs.FS
	Dir string
}

func (s FSCountySource) file(fips string) string {
	return path.Join(s.Dir, fips+".yaml")
}

func (s FSCountySource) Has(fips string) bool {
	if s.FS == nil || fips == "" {
		return false
	}
	_, err := fs.Stat(s.FS, s.file(fips))
	return err == nil
}

func (s FSCountySource) LoadCounties(ctx context.Context, fips string) ([]*County, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Has(fips) {
		return nil, fmt.Errorf("%w %s", ErrNoCountyData, fips)
	}
	data, err := fs.ReadFile(s.FS, s.file(fips))
	if err != nil {
		return nil, fmt.Errorf("reading county file: %w", err)
	}

	var mod map[string][]*County
	if err := yaml.Unmarshal(data, &mod); err != nil {
		return nil, fmt.Errorf("parsing county YAML for %s: %w", fips, err)
	}
	counties := mod["COUNTIES_"+fips]
	if counties == nil {
		counties = []*County{}
	}
	for _, c := range counties {
		if c.ParentFIPS == "" {
			c.ParentFIPS = fips
		}
	}
	return counties, nil
}

// CountyCache loads each state's counties at most once per process.
// Concurrent loads of the same state share one call to the source; a failed
// load leaves no trace so it can be retried.
type CountyCache struct {
	src CountySource

	// OnLoad, when set, is called after every call to the source.
	OnLoad func(fips string, err error)

	group singleflight.Group

	mu      sync.RWMutex
	loaded  map[string][]*County
	loading map[string]bool
}

// NewCountyCache creates an empty cache over src.
func NewCountyCache(src CountySource) *CountyCache {
	return &CountyCache{
		src:     src,
		loaded:  make(map[string][]*County),
		loading: make(map[string]bool),
	}
}

// Has reports whether the source can provide counties for fips.
func (c *CountyCache) Has(fips string) bool {
	return c.src != nil && c.src.Has(fips)
}

// Load returns the counties of the state, loading them on first use.
// Cancelling ctx abandons this caller's wait only.
func (c *CountyCache) Load(ctx context.Context, fips string) ([]*County, error) {
	if counties, ok := c.Loaded(fips); ok {
		return counties, nil
	}
	if !c.Has(fips) {
		return nil, fmt.Errorf("%w %s", ErrNoCountyData, fips)
	}

	ch := c.group.DoChan(fips, func() (any, error) {
		if counties, ok := c.Loaded(fips); ok {
			return counties, nil
		}
		c.setLoading(fips, true)
		defer c.setLoading(fips, false)

		counties, err := c.src.LoadCounties(context.WithoutCancel(ctx), fips)
		if c.OnLoad != nil {
			c.OnLoad(fips, err)
		}
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.loaded[fips] = counties
		c.mu.Unlock()
		return counties, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*County), nil
	}
}

func (c *CountyCache) setLoading(fips string, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v {
		c.loading[fips] = true
	} else {
		delete(c.loading, fips)
	}
}

// Loaded returns the counties of a state that has finished loading.
func (c *CountyCache) Loaded(fips string) ([]*County, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	counties, ok := c.loaded[fips]
	return counties, ok
}

// Loading reports whether a load for fips is in flight.
func (c *CountyCache) Loading(fips string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading[fips]
}

// Snapshot returns a copy of the loaded-counties table.
func (c *CountyCache) Snapshot() map[string][]*County {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]*County, len(c.loaded))
	for k, v := range c.loaded {
		out[k] = v
	}
	return out
}
