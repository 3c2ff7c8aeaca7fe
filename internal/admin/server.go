// Admin HTTP surface over the fleet store and simulation driver
package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voxsane-fleet/internal/fleet"
	"voxsane-fleet/internal/logging"
	"voxsane-fleet/internal/metrics"
	"voxsane-fleet/internal/sim"
)

// Simulation is the driver control surface exposed over HTTP.
type Simulation interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
	Config() sim.Config
}

// Server serves the store as JSON, an HTML overview, a websocket change
// stream and Prometheus metrics.
type Server struct {
	store   *fleet.Store
	sim     Simulation
	metrics *metrics.Metrics
	tpl     *template.Template
	mux     *http.ServeMux
	baseCtx context.Context
	// OnListen is called once the listener is bound and again with false
	// after shutdown.
	OnListen func(listening bool)
}

//go:embed templates/index.html
var content embed.FS

// Option configures a Server.
type Option func(*Server)

// WithSimulation exposes driver start/stop under /simulation.
func WithSimulation(s Simulation) Option {
	return func(srv *Server) { srv.sim = s }
}

// WithMetrics serves m under /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// NewServer builds the handler tree for store.
func NewServer(store *fleet.Store, opts ...Option) *Server {
	tpl := template.Must(template.New("index.html").Funcs(template.FuncMap{
		"pct": func(v *float64) string {
			if v == nil {
				return "-"
			}
			return fmt.Sprintf("%.0f%%", *v)
		},
	}).ParseFS(content, "templates/index.html"))
	s := &Server{store: store, tpl: tpl, mux: http.NewServeMux(), baseCtx: context.Background()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /drones", s.handleDrones)
	s.mux.HandleFunc("GET /drones/{id}", s.handleDrone)
	s.mux.HandleFunc("POST /drones/{id}/status", s.handleSetStatus)
	s.mux.HandleFunc("POST /drones/{id}/launch", s.handleLaunch)
	s.mux.HandleFunc("GET /alerts", s.handleAlerts)
	s.mux.HandleFunc("POST /alerts", s.handlePushAlert)
	s.mux.HandleFunc("POST /alerts/{id}/kind", s.handleAlertKind)
	s.mux.HandleFunc("GET /activity", s.handleActivity)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /simulation", s.handleSimulation)
	s.mux.HandleFunc("POST /simulation/start", s.handleSimulationStart)
	s.mux.HandleFunc("POST /simulation/stop", s.handleSimulationStop)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	if s.metrics != nil {
		h := s.metrics.Handler()
		s.mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
			s.metrics.ObserveStore(s.store)
			h.ServeHTTP(w, r)
		})
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
// A driver started over HTTP lives as long as ctx.
func (s *Server) Start(ctx context.Context, addr string) error {
	log := logging.FromContext(ctx)
	s.baseCtx = ctx
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	if s.OnListen != nil {
		s.OnListen(true)
		defer s.OnListen(false)
	}
	log.Info("admin server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("admin server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps store errors to status codes and a kind the UI can show.
func writeError(w http.ResponseWriter, err error) {
	kind := fleet.ErrorKind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fleet.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, fleet.ErrInvalidStatus), errors.Is(err, fleet.ErrInvalidAlert), errors.Is(err, fleet.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: kind, Message: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", fleet.ErrInvalidArgument, err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Stats    fleet.Stats
		Drones   []fleet.Drone
		Alerts   []fleet.Alert
		Activity []fleet.Activity
		HasSim   bool
		Running  bool
	}{
		Stats:    s.store.Stats(),
		Drones:   s.store.ListDrones(),
		Alerts:   s.store.ListAlerts(),
		Activity: s.store.ListActivity(),
		HasSim:   s.sim != nil,
	}
	if s.sim != nil {
		data.Running = s.sim.Running()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		logging.FromContext(r.Context()).Error("render index", "err", err)
	}
}

func (s *Server) handleDrones(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		d, err := s.store.FindDrone(q)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, []fleet.Drone{d})
		return
	}
	writeJSON(w, http.StatusOK, s.store.ListDrones())
}

func (s *Server) handleDrone(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Drone(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	status, err := fleet.ParseStatus(body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.SetDroneStatus(r.PathValue("id"), status); err != nil {
		writeError(w, err)
		return
	}
	s.handleDrone(w, r)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if err := s.store.LaunchMission(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	s.handleDrone(w, r)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListAlerts())
}

func (s *Server) handlePushAlert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Author      string `json:"author"`
		Kind        string `json:"kind"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	kind := fleet.AlertPending
	if strings.TrimSpace(body.Kind) != "" {
		k, err := fleet.ParseAlertKind(body.Kind)
		if err != nil {
			writeError(w, err)
			return
		}
		kind = k
	}
	a, err := s.store.PushAlert(fleet.Alert{
		Title:       body.Title,
		Description: body.Description,
		Author:      body.Author,
		Kind:        kind,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleAlertKind(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, fmt.Errorf("%w: alert id %q", fleet.ErrInvalidArgument, r.PathValue("id")))
		return
	}
	var body struct {
		Kind string `json:"kind"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	kind, err := fleet.ParseAlertKind(body.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.SetAlertKind(id, kind); err != nil {
		writeError(w, err)
		return
	}
	for _, a := range s.store.ListAlerts() {
		if a.ID == id {
			writeJSON(w, http.StatusOK, a)
			return
		}
	}
	writeError(w, fmt.Errorf("%w: alert %d", fleet.ErrNotFound, id))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListActivity())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

type simulationView struct {
	Running          bool    `json:"running"`
	DrainInterval    string  `json:"drain_interval"`
	DrainMin         float64 `json:"drain_min"`
	DrainMax         float64 `json:"drain_max"`
	ProgressMin      float64 `json:"progress_min"`
	ProgressMax      float64 `json:"progress_max"`
	BatteryFloor     float64 `json:"battery_floor"`
	AlertInterval    string  `json:"alert_interval"`
	AlertProbability float64 `json:"alert_probability"`
	ActivityInterval string  `json:"activity_interval"`
}

func (s *Server) simulationStatus(w http.ResponseWriter) {
	cfg := s.sim.Config()
	writeJSON(w, http.StatusOK, simulationView{
		Running:          s.sim.Running(),
		DrainInterval:    cfg.DrainInterval.String(),
		DrainMin:         cfg.DrainMin,
		DrainMax:         cfg.DrainMax,
		ProgressMin:      cfg.ProgressMin,
		ProgressMax:      cfg.ProgressMax,
		BatteryFloor:     cfg.BatteryFloor,
		AlertInterval:    cfg.AlertInterval.String(),
		AlertProbability: cfg.AlertProbability,
		ActivityInterval: cfg.ActivityInterval.String(),
	})
}

func (s *Server) requireSim(w http.ResponseWriter) bool {
	if s.sim == nil {
		writeError(w, fmt.Errorf("%w: no simulation attached", fleet.ErrNotFound))
		return false
	}
	return true
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	if s.requireSim(w) {
		s.simulationStatus(w)
	}
}

func (s *Server) handleSimulationStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireSim(w) {
		return
	}
	s.sim.Start(s.baseCtx)
	s.simulationStatus(w)
}

func (s *Server) handleSimulationStop(w http.ResponseWriter, r *http.Request) {
	if !s.requireSim(w) {
		return
	}
	s.sim.Stop()
	s.simulationStatus(w)
}
