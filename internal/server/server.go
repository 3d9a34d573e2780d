package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ChicagoDave/popglobe/internal/metrics"
	"github.com/ChicagoDave/popglobe/pkg/globe"
	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
	"github.com/ChicagoDave/popglobe/pkg/palette"
	"github.com/ChicagoDave/popglobe/pkg/scene"
	"github.com/ChicagoDave/popglobe/pkg/selection"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server exposes one globe session to a browser renderer: the scene graph,
// the sidebar list and the interaction operations, plus a websocket feed of
// redraw requests.
type Server struct {
	cfg         Config
	session     *globe.Session
	graph       *scene.Graph
	logger      *slog.Logger
	hub         *hub
	scale       *palette.Scale
	router      chi.Router
	httpServer  *http.Server
	unsubscribe func()
}

// New creates a server for a session drawn on graph.
func New(cfg Config, session *globe.Session, graph *scene.Graph, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		session: session,
		graph:   graph,
		logger:  logger,
		hub:     newHub(logger, cfg.AllowAll),
		scale:   palette.NewScale(session.Hierarchy().MaxPopulation()),
	}
	s.unsubscribe = graph.OnRedraw(s.hub.broadcast)
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", s.hub.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/scene", s.handleScene)
		r.Get("/state", s.handleState)
		r.Get("/list", s.handleList)
		r.Get("/validation", s.handleValidation)
		r.Get("/pick", s.handlePick)
		r.Post("/hover", s.handleHover)
		r.Post("/select", s.handleSelect)
		r.Post("/camera", s.handleCamera)
		r.Post("/expand/country/{iso}", s.handleExpandCountry)
		r.Post("/expand/state/{fips}", s.handleExpandState)
	})
	r.Get("/", s.handleIndex)
	return r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	s.logger.Info("popglobe server starting", "url", "http://localhost"+s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the listener and detaches from the scene.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// entityView is the JSON form of an entity in list and pick responses.
type entityView struct {
	Key             string         `json:"key"`
	Kind            hierarchy.Kind `json:"kind"`
	Name            string         `json:"name"`
	Population      int64          `json:"population"`
	PopulationLabel string         `json:"population_label"`
	Tier            palette.Tier   `json:"tier"`
	Color           string         `json:"color"`
	Lat             float64        `json:"lat"`
	Lon             float64        `json:"lon"`
	Depth           int            `json:"depth"`
}

func (s *Server) view(e hierarchy.Entity, depth int) *entityView {
	if hierarchy.IsNilEntity(e) {
		return nil
	}
	p := hierarchy.PlaceOf(e)
	return &entityView{
		Key:             selection.Key(e),
		Kind:            e.Kind(),
		Name:            p.Name,
		Population:      p.Population,
		PopulationLabel: palette.Format(p.Population),
		Tier:            palette.TierFor(p.Population),
		Color:           s.scale.Color(p.Population).Hex(),
		Lat:             p.Lat,
		Lon:             p.Lon,
		Depth:           depth,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>popglobe</title></head>
<body style="margin:0;background:#05070d;color:#fff;font-family:system-ui;display:flex;align-items:center;justify-content:center;height:100vh">
<div style="text-align:center">
<h1>popglobe</h1>
<p>Renderer not embedded. Point a renderer at <code>/api/scene</code> and <code>/ws</code>.</p>
</div>
</body></html>`)
}

func (s *Server) handleScene(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.graph)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	items := s.session.List(q)
	rows := make([]*entityView, 0, len(items))
	for _, it := range items {
		rows = append(rows, s.view(it.Entity, it.Depth))
	}
	resp := map[string]any{"items": rows}
	if len(rows) == 0 && q != "" {
		resp["suggestions"] = s.session.Suggest(q, 3)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidation(w http.ResponseWriter, _ *http.Request) {
	report := hierarchy.Validate(s.session.Hierarchy(), s.session.Counties().Snapshot())
	report.Merge(scene.ValidateGraph(s.graph))
	writeJSON(w, http.StatusOK, report)
}

func parseXY(r *http.Request) (float64, float64, error) {
	x, err := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y: %w", err)
	}
	return x, y, nil
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	x, y, err := parseXY(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, ok := s.session.Pick(x, y)
	metrics.ObservePick(ok)
	writeJSON(w, http.StatusOK, map[string]any{"entity": s.view(e, 0)})
}

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, changed := s.session.Hover(req.X, req.Y)
	metrics.ObservePick(!hierarchy.IsNilEntity(e))
	writeJSON(w, http.StatusOK, map[string]any{"entity": s.view(e, 0), "changed": changed})
}

type selectRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, fly, ok := s.session.SelectKey(req.Key)
	resp := map[string]any{"entity": s.view(e, 0)}
	if ok {
		resp["fly_to"] = fly
	}
	writeJSON(w, http.StatusOK, resp)
}

type cameraRequest struct {
	Height float64 `json:"height"`
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Height <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("height must be positive"))
		return
	}
	writeJSON(w, http.StatusOK, s.session.SetCamera(req.Height))
}

func (s *Server) handleExpandCountry(w http.ResponseWriter, r *http.Request) {
	iso := chi.URLParam(r, "iso")
	if _, ok := s.session.Hierarchy().Country(iso); !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown country %q", iso))
		return
	}
	expanded, err := s.session.ToggleCountry(iso)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"iso": iso, "expanded": expanded})
}

func (s *Server) handleExpandState(w http.ResponseWriter, r *http.Request) {
	fips := chi.URLParam(r, "fips")
	if _, ok := s.session.Hierarchy().StateByFIPS(fips); !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown state %q", fips))
		return
	}
	expanded, err := s.session.ToggleState(r.Context(), fips)
	switch {
	case errors.Is(err, globe.ErrDisposed):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fips":     fips,
		"expanded": expanded,
		"counties": len(s.session.Counties().Snapshot()[fips]),
	})
}
