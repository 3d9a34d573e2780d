package topo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/singleflight"
)

// Cache memoises topology documents by URL for the life of the process.
// Concurrent requests for the same URL share one fetch. Failed fetches are
// not cached so a later call retries.
type Cache struct {
	fetcher Fetcher

	// OnFetch, when set, is called after every underlying fetch.
	OnFetch func(url string, elapsed time.Duration, err error)

	group singleflight.Group

	mu      sync.RWMutex
	docs    map[string]*Topology
	decoded map[decodedKey]*geojson.FeatureCollection
}

type decodedKey struct {
	url    string
	object string
}

// NewCache creates an empty cache backed by f.
func NewCache(f Fetcher) *Cache {
	return &Cache{
		fetcher: f,
		docs:    make(map[string]*Topology),
		decoded: make(map[decodedKey]*geojson.FeatureCollection),
	}
}

// Topology returns the parsed document at url, fetching it at most once.
// Cancelling ctx abandons this caller's wait; the shared fetch continues for
// other callers.
func (c *Cache) Topology(ctx context.Context, url string) (*Topology, error) {
	c.mu.RLock()
	t, ok := c.docs[url]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	ch := c.group.DoChan(url, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), url)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Topology), nil
	}
}

func (c *Cache) load(ctx context.Context, url string) (*Topology, error) {
	c.mu.RLock()
	t, ok := c.docs[url]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	start := time.Now()
	data, err := c.fetcher.Fetch(ctx, url)
	if err == nil {
		t, err = Parse(data)
		if err != nil {
			err = fmt.Errorf("parsing topology %s: %w", url, err)
		}
	}
	if c.OnFetch != nil {
		c.OnFetch(url, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.docs[url] = t
	c.mu.Unlock()
	return t, nil
}

// Features returns the decoded object of the document at url. Decoded
// collections are memoised per (url, object) and must be treated as read-only.
func (c *Cache) Features(ctx context.Context, url, object string) (*geojson.FeatureCollection, error) {
	key := decodedKey{url: url, object: object}
	c.mu.RLock()
	fc, ok := c.decoded[key]
	c.mu.RUnlock()
	if ok {
		return fc, nil
	}

	t, err := c.Topology(ctx, url)
	if err != nil {
		return nil, err
	}
	fc = Decode(t, object)

	c.mu.Lock()
	if prev, ok := c.decoded[key]; ok {
		fc = prev
	} else {
		c.decoded[key] = fc
	}
	c.mu.Unlock()
	return fc, nil
}

// Cached reports whether url has been fetched successfully.
func (c *Cache) Cached(url string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.docs[url]
	return ok
}

// Reset drops every cached document.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.docs = make(map[string]*Topology)
	c.decoded = make(map[decodedKey]*geojson.FeatureCollection)
	c.mu.Unlock()
}
