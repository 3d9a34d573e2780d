package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChicagoDave/popglobe/internal/metrics"
	"github.com/ChicagoDave/popglobe/internal/server"
	"github.com/ChicagoDave/popglobe/pkg/geo"
	"github.com/ChicagoDave/popglobe/pkg/globe"
	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/scene"
	"github.com/ChicagoDave/popglobe/pkg/selection"
	"github.com/ChicagoDave/popglobe/pkg/sidebar"
	"github.com/ChicagoDave/popglobe/pkg/topo"
)

// loadDataset reads the configured data directory, or the bundled dataset.
func loadDataset() (*hierarchy.Dataset, error) {
	var (
		ds  *hierarchy.Dataset
		err error
	)
	if settings.DataDir != "" {
		ds, err = hierarchy.Load(settings.DataDir)
	} else {
		ds, err = hierarchy.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	return ds, nil
}

func newFetcher() topo.Fetcher {
	return topo.NewFetcher(settings.TopologyRoot, settings.Fetch.Timeout, settings.Fetch.RPS)
}

func newTopologyCache(f topo.Fetcher) *topo.Cache {
	c := topo.NewCache(f)
	c.OnFetch = metrics.ObserveFetch
	return c
}

func newCountyCache(ds *hierarchy.Dataset) *hierarchy.CountyCache {
	c := hierarchy.NewCountyCache(ds.CountySource)
	c.OnLoad = metrics.ObserveCountyLoad
	return c
}

// openSession loads every layer onto a fresh scene graph.
func openSession(ctx context.Context) (*globe.Session, *scene.Graph, error) {
	ds, err := loadDataset()
	if err != nil {
		return nil, nil, err
	}

	graph := scene.NewGraph(geo.EarthRadius, geo.Equirectangular{
		Width:  settings.Viewport.Width,
		Height: settings.Viewport.Height,
	})
	graph.OnRedraw(metrics.ObserveRedraw)

	index := selection.New(graph)
	index.OnHighlight = metrics.ObserveHighlight

	f := newFetcher()
	session, err := globe.Open(ctx, globe.Config{
		Dataset:       ds,
		Surface:       graph,
		Topology:      newTopologyCache(f),
		Counties:      newCountyCache(ds),
		Index:         index,
		WorldURL:      settings.WorldURL,
		CitiesURL:     settings.CitiesURL,
		Fetcher:       f,
		InitialHeight: settings.InitialHeight,
		Logger:        slog.Default(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening globe: %w", err)
	}
	return session, graph, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDecode(ctx context.Context, url, object string) error {
	cache := newTopologyCache(newFetcher())
	fc, err := cache.Features(ctx, url, object)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	if len(fc.Features) == 0 {
		slog.Warn("no features decoded", "url", url, "object", object)
	}
	return writeJSON(fc)
}

func runList(ctx context.Context, query string, expand []string) error {
	ds, err := loadDataset()
	if err != nil {
		return err
	}
	counties := newCountyCache(ds)

	params := sidebar.Params{
		Countries:         ds.Hierarchy.Countries(),
		Query:             query,
		ExpandedCountries: make(map[string]bool),
		ExpandedStates:    make(map[string]bool),
		HasCountyLoader:   counties.Has,
	}
	for _, id := range expand {
		if _, ok := ds.Hierarchy.Country(id); ok {
			params.ExpandedCountries[id] = true
			continue
		}
		if _, ok := ds.Hierarchy.StateByFIPS(id); !ok {
			return fmt.Errorf("unknown country or state %q", id)
		}
		params.ExpandedStates[id] = true
		if counties.Has(id) {
			if _, err := counties.Load(ctx, id); err != nil {
				return fmt.Errorf("loading counties for %s: %w", id, err)
			}
		}
	}
	params.LoadedCounties = counties.Snapshot()

	items := sidebar.Build(params)
	if len(items) == 0 && query != "" {
		printNoMatches(os.Stdout, query, sidebar.Suggest(params.Countries, query, 3))
		return nil
	}
	printList(os.Stdout, items, ds.Hierarchy.WorldPopulation())
	return nil
}

func runValidate(ctx context.Context, at string) error {
	ds, err := loadDataset()
	if err != nil {
		return err
	}
	counties := newCountyCache(ds)
	if usa, ok := ds.Hierarchy.Country("USA"); ok {
		for _, st := range usa.Subdivisions {
			if !counties.Has(st.FIPS) {
				continue
			}
			if _, err := counties.Load(ctx, st.FIPS); err != nil {
				return fmt.Errorf("loading counties for %s: %w", st.FIPS, err)
			}
		}
	}

	report := hierarchy.Validate(ds.Hierarchy, counties.Snapshot())
	if at != "" {
		if printErrorAt(os.Stdout, report, at) {
			os.Exit(1)
		}
		return nil
	}
	printValidationReport(os.Stdout, report)

	if !report.Valid {
		os.Exit(1)
	}
	return nil
}

func runScene(ctx context.Context, height float64) error {
	session, graph, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer session.Dispose()

	if height > 0 {
		session.SetCamera(height)
	}
	output := map[string]any{
		"state":       session.State(),
		"validation":  scene.ValidateGraph(graph),
		"scene_graph": graph,
	}
	return writeJSON(output)
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, graph, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer session.Dispose()

	srv := server.New(server.Config{
		Port:     settings.Server.Port,
		AllowAll: settings.Server.AllowAll,
	}, session, graph, slog.Default())

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
