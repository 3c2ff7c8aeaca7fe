package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxsane-fleet/internal/fleet"
	"voxsane-fleet/internal/metrics"
	"voxsane-fleet/internal/sim"
)

type fakeSim struct {
	running bool
	ctx     context.Context
}

func (f *fakeSim) Start(ctx context.Context) { f.running = true; f.ctx = ctx }
func (f *fakeSim) Stop()                     { f.running = false }
func (f *fakeSim) Running() bool             { return f.running }
func (f *fakeSim) Config() sim.Config        { return sim.DefaultConfig() }

func newTestServer(t *testing.T, opts ...Option) (*Server, *fleet.Store) {
	t.Helper()
	store, err := fleet.NewStore(fleet.DefaultDrones())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewServer(store, opts...), store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Drone Alpha") || !strings.Contains(w.Body.String(), "45%") {
		t.Fatalf("index missing fleet data")
	}
}

func TestListAndFindDrones(t *testing.T) {
	s, _ := newTestServer(t)
	drones := decodeBody[[]fleet.Drone](t, do(t, s, http.MethodGet, "/drones", ""))
	if len(drones) != 4 {
		t.Fatalf("drones = %d, want 4", len(drones))
	}

	found := decodeBody[[]fleet.Drone](t, do(t, s, http.MethodGet, "/drones?q=beta", ""))
	if len(found) != 1 || found[0].Name != "Drone Beta" {
		t.Fatalf("unexpected find result %+v", found)
	}

	w := do(t, s, http.MethodGet, "/drones?q=zzz", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if e := decodeBody[errorBody](t, w); e.Error != "NotFound" || e.Message == "" {
		t.Fatalf("unexpected error body %+v", e)
	}
}

func TestSetStatus(t *testing.T) {
	s, store := newTestServer(t)
	w := do(t, s, http.MethodPost, "/drones/drone-beta/status", `{"status":"flying"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	d := decodeBody[fleet.Drone](t, w)
	if d.Status != fleet.StatusFlying || d.MissionProgress == nil {
		t.Fatalf("unexpected drone %+v", d)
	}

	before, _ := store.Drone("drone-beta")
	w = do(t, s, http.MethodPost, "/drones/drone-beta/status", `{"status":"bogus"}`)
	if w.Code != http.StatusBadRequest || decodeBody[errorBody](t, w).Error != "InvalidStatus" {
		t.Fatalf("expected InvalidStatus 400, got %d", w.Code)
	}
	after, _ := store.Drone("drone-beta")
	if after.Status != before.Status || after.Battery != before.Battery {
		t.Fatalf("drone changed by rejected request")
	}

	if w := do(t, s, http.MethodPost, "/drones/nope/status", `{"status":"online"}`); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/drones/drone-beta/status", `{"state":"online"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field accepted: %d", w.Code)
	}
}

func TestIntentsAcceptConfigSpelling(t *testing.T) {
	s, store := newTestServer(t)
	w := do(t, s, http.MethodPost, "/drones/drone-beta/status", `{"status":"Flying"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if d, _ := store.Drone("drone-beta"); d.Status != fleet.StatusFlying {
		t.Fatalf("drone status = %q, want flying", d.Status)
	}

	w = do(t, s, http.MethodPost, "/alerts", `{"title":"Engine fault","author":"Ops","kind":" URGENT "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	a := decodeBody[fleet.Alert](t, w)
	if a.Kind != fleet.AlertUrgent {
		t.Fatalf("kind = %q, want urgent", a.Kind)
	}

	w = do(t, s, http.MethodPost, "/alerts", `{"title":"Engine fault","author":"Ops","kind":"later"}`)
	if w.Code != http.StatusBadRequest || decodeBody[errorBody](t, w).Error != "InvalidAlert" {
		t.Fatalf("expected InvalidAlert 400, got %d", w.Code)
	}

	w = do(t, s, http.MethodPost, fmt.Sprintf("/alerts/%d/kind", a.ID), `{"kind":"Resolved"}`)
	if w.Code != http.StatusOK || decodeBody[fleet.Alert](t, w).Kind != fleet.AlertResolved {
		t.Fatalf("kind update failed: %d", w.Code)
	}
	if got := len(store.ListAlerts()); got != 1 {
		t.Fatalf("alerts = %d, want 1", got)
	}
}

func TestLaunch(t *testing.T) {
	s, store := newTestServer(t)
	if w := do(t, s, http.MethodPost, "/drones/drone-beta/launch", ""); w.Code != http.StatusOK {
		t.Fatalf("launch status = %d: %s", w.Code, w.Body)
	}
	if d, _ := store.Drone("drone-beta"); d.Status != fleet.StatusFlying {
		t.Fatalf("drone not flying")
	}
	if w := do(t, s, http.MethodPost, "/drones/drone-delta/launch", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("offline launch status = %d, want 400", w.Code)
	}
	act := decodeBody[[]fleet.Activity](t, do(t, s, http.MethodGet, "/activity", ""))
	if len(act) != 1 || !strings.Contains(act[0].Message, "Drone Beta") {
		t.Fatalf("unexpected activity %+v", act)
	}
}

func TestAlerts(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodPost, "/alerts", `{"title":"Weather Advisory","author":"Ops"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	a := decodeBody[fleet.Alert](t, w)
	if a.ID == 0 || a.Kind != fleet.AlertPending {
		t.Fatalf("unexpected alert %+v", a)
	}

	w = do(t, s, http.MethodPost, "/alerts", `{"title":"","author":"Ops"}`)
	if w.Code != http.StatusBadRequest || decodeBody[errorBody](t, w).Error != "InvalidAlert" {
		t.Fatalf("expected InvalidAlert 400, got %d", w.Code)
	}

	w = do(t, s, http.MethodPost, "/alerts/1/kind", `{"kind":"resolved"}`)
	if w.Code != http.StatusOK || decodeBody[fleet.Alert](t, w).Kind != fleet.AlertResolved {
		t.Fatalf("kind update failed: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/alerts/99/kind", `{"kind":"resolved"}`); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/alerts/x/kind", `{"kind":"resolved"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	alerts := decodeBody[[]fleet.Alert](t, do(t, s, http.MethodGet, "/alerts", ""))
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	stats := decodeBody[fleet.Stats](t, do(t, s, http.MethodGet, "/stats", ""))
	if stats.ResolvedAlerts != 1 || stats.Drones != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSimulationControl(t *testing.T) {
	if w := do(t, func() *Server { s, _ := newTestServer(t); return s }(), http.MethodGet, "/simulation", ""); w.Code != http.StatusNotFound {
		t.Fatalf("status without sim = %d, want 404", w.Code)
	}

	fs := &fakeSim{}
	s, _ := newTestServer(t, WithSimulation(fs))
	v := decodeBody[simulationView](t, do(t, s, http.MethodPost, "/simulation/start", ""))
	if !v.Running || !fs.running || fs.ctx == nil {
		t.Fatalf("simulation not started: %+v", v)
	}
	if v.DrainInterval != "5s" || v.AlertProbability != 0.3 {
		t.Fatalf("unexpected config view %+v", v)
	}
	v = decodeBody[simulationView](t, do(t, s, http.MethodPost, "/simulation/stop", ""))
	if v.Running || fs.running {
		t.Fatalf("simulation not stopped")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, WithMetrics(metrics.New()))
	w := do(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `fleet_drones{status="flying"} 1`) {
		t.Fatalf("store gauges missing:\n%s", w.Body)
	}
}

func TestWebSocketStream(t *testing.T) {
	s, store := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap wsMessage
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Type != "snapshot" || len(snap.Drones) != 4 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if _, err := store.PushAlert(fleet.Alert{Title: "Signal Interference", Author: "Drone Alpha", Kind: fleet.AlertUrgent}); err != nil {
		t.Fatalf("PushAlert: %v", err)
	}
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read change: %v", err)
	}
	if msg.Type != "alerts" || len(msg.Alerts) != 1 || msg.Stats.UrgentAlerts != 1 {
		t.Fatalf("unexpected change frame %+v", msg)
	}
}

func TestStartShutsDown(t *testing.T) {
	s, _ := newTestServer(t)
	var states []bool
	s.OnListen = func(l bool) { states = append(states, l) }
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
	if len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("unexpected listen states %v", states)
	}
}
