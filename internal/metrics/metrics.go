package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TopologyFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popglobe_topology_fetches_total",
		Help: "Total topology document fetches by outcome",
	}, []string{"outcome"})
	TopologyFetchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "popglobe_topology_fetch_duration_ms",
		Help:    "Topology fetch and parse duration in milliseconds",
		Buckets: []float64{5, 20, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	CountyLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popglobe_county_loads_total",
		Help: "Total county source loads by outcome",
	}, []string{"outcome"})
	PicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "popglobe_picks_total",
		Help: "Total pick requests by result",
	}, []string{"result"})
	HighlightsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popglobe_highlights_total",
		Help: "Total highlight requests",
	})
	HighlightedHandles = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "popglobe_highlighted_handles",
		Help:    "Number of geometries restyled per highlight",
		Buckets: []float64{0, 1, 2, 5, 10, 50},
	})
	RedrawsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "popglobe_redraws_total",
		Help: "Total redraw requests issued to the surface",
	})
)

func init() {
	prometheus.MustRegister(TopologyFetchesTotal)
	prometheus.MustRegister(TopologyFetchDurationMs)
	prometheus.MustRegister(CountyLoadsTotal)
	prometheus.MustRegister(PicksTotal)
	prometheus.MustRegister(HighlightsTotal)
	prometheus.MustRegister(HighlightedHandles)
	prometheus.MustRegister(RedrawsTotal)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveFetch records one topology fetch. It matches topo.Cache.OnFetch.
func ObserveFetch(_ string, elapsed time.Duration, err error) {
	TopologyFetchesTotal.WithLabelValues(outcome(err)).Inc()
	TopologyFetchDurationMs.Observe(float64(elapsed.Microseconds()) / 1000)
}

// ObserveCountyLoad records one county load. It matches
// hierarchy.CountyCache.OnLoad.
func ObserveCountyLoad(_ string, err error) {
	CountyLoadsTotal.WithLabelValues(outcome(err)).Inc()
}

// ObserveHighlight records one highlight. It matches selection.Index.OnHighlight.
func ObserveHighlight(_ string, handles int) {
	HighlightsTotal.Inc()
	HighlightedHandles.Observe(float64(handles))
}

// ObservePick records whether a pick hit an entity.
func ObservePick(hit bool) {
	if hit {
		PicksTotal.WithLabelValues("hit").Inc()
		return
	}
	PicksTotal.WithLabelValues("miss").Inc()
}

// ObserveRedraw records one redraw. It matches scene.Graph.OnRedraw.
func ObserveRedraw(int) { RedrawsTotal.Inc() }

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
