package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/journal"
	"github.com/nerrad567/mqtt2broadlink/internal/metrics"
	"github.com/nerrad567/mqtt2broadlink/internal/router"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type mockInventory struct {
	devices  [][2]string
	commands []string
}

func (m *mockInventory) DeviceNames() []string {
	names := make([]string, 0, len(m.devices))
	for _, d := range m.devices {
		names = append(names, d[0])
	}
	return names
}

func (m *mockInventory) Device(name string) (string, bool) {
	for _, d := range m.devices {
		if strings.EqualFold(d[0], name) {
			return d[1], true
		}
	}
	return "", false
}

func (m *mockInventory) CommandNames() []string { return m.commands }

type mockJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
	last    journal.Filter
}

func (m *mockJournal) List(_ context.Context, f journal.Filter) ([]journal.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = f
	return m.entries, m.err
}

func newTestServer(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Listen == "" {
		deps.Listen = "127.0.0.1:0"
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	s, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s.Handler()
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s: invalid JSON: %v", path, err)
		}
	}
	return rec, body
}

func TestNew_RequiresLoggerAndListen(t *testing.T) {
	if _, err := New(Deps{Listen: ":0"}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: nopLogger{}}); err == nil {
		t.Error("New() without listen address should fail")
	}
}

func TestHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	h := newTestServer(t, Deps{
		Version: "1.2.3",
		Health: func(context.Context) error {
			if !healthy.Load() {
				return errors.New("mqtt: client not connected")
			}
			return nil
		},
	})

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec, body := get(t, h, path)
		if rec.Code != http.StatusOK || body["status"] != "ok" || body["version"] != "1.2.3" {
			t.Errorf("GET %s = %d %v", path, rec.Code, body)
		}
	}

	healthy.Store(false)
	rec, body := get(t, h, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", rec.Code)
	}
	if body["error"] != "mqtt: client not connected" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestRequestID(t *testing.T) {
	h := newTestServer(t, Deps{})

	rec, _ := get(t, h, "/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want abc", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New()
	m.Record(context.Background(), router.Outcome{Handler: router.HandlerSend, Result: router.ResultOK})

	rec, _ := get(t, newTestServer(t, Deps{Metrics: m.Handler()}), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `m2b_messages_total{handler="send",result="ok"} 1`) {
		t.Error("exposition missing send counter")
	}

	rec, _ = get(t, newTestServer(t, Deps{}), "/metrics")
	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics without collectors = %d, want 404", rec.Code)
	}
}

func TestDevices(t *testing.T) {
	h := newTestServer(t, Deps{Inventory: &mockInventory{
		devices: [][2]string{
			{"kitchen-ac", "0x2737 192.168.1.50 34:ea:34:01:02:03"},
			{"broken", "garbage"},
		},
		commands: []string{"tv_power", "ac_off"},
	}})

	rec, body := get(t, h, "/api/v1/devices")
	if rec.Code != http.StatusOK || body["count"] != float64(2) {
		t.Fatalf("devices = %d %v", rec.Code, body)
	}
	devices := body["devices"].([]any)
	first := devices[0].(map[string]any)
	if first["name"] != "kitchen-ac" || first["host"] != "192.168.1.50" || first["type"] != "0x2737" {
		t.Errorf("first device = %v", first)
	}
	if first["mac"] != "34:ea:34:01:02:03" || first["model"] == "" {
		t.Errorf("first device = %v", first)
	}
	if second := devices[1].(map[string]any); second["error"] == nil {
		t.Errorf("malformed identity not reported: %v", second)
	}

	rec, body = get(t, h, "/api/v1/devices/Kitchen-AC")
	if rec.Code != http.StatusOK || body["host"] != "192.168.1.50" {
		t.Errorf("device = %d %v", rec.Code, body)
	}

	rec, body = get(t, h, "/api/v1/devices/ghost")
	if rec.Code != http.StatusNotFound || body["code"] != ErrCodeNotFound {
		t.Errorf("unknown device = %d %v", rec.Code, body)
	}

	rec, body = get(t, h, "/api/v1/commands")
	if rec.Code != http.StatusOK || body["count"] != float64(2) {
		t.Errorf("commands = %d %v", rec.Code, body)
	}
}

func TestInventoryNotConfigured(t *testing.T) {
	h := newTestServer(t, Deps{})
	for _, path := range []string{"/api/v1/devices", "/api/v1/devices/x", "/api/v1/commands", "/api/v1/journal"} {
		if rec, _ := get(t, h, path); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

func TestJournal(t *testing.T) {
	started := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	j := &mockJournal{entries: []journal.Entry{{
		ID:        "e1",
		Handler:   router.HandlerSend,
		Subject:   "kitchen-ac",
		Topic:     "m2b/device/kitchen-ac/send",
		Payload:   "ac_on",
		Result:    router.ResultOK,
		StartedAt: started,
	}}}
	h := newTestServer(t, Deps{Journal: j})

	rec, body := get(t, h, "/api/v1/journal?handler=send&subject=kitchen-ac&result=ok&since=2026-10-15T00:00:00Z&limit=10&offset=5")
	if rec.Code != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("journal = %d %v", rec.Code, body)
	}

	j.mu.Lock()
	f := j.last
	j.mu.Unlock()
	if f.Handler != "send" || f.Subject != "kitchen-ac" || f.Result != router.ResultOK {
		t.Errorf("filter = %+v", f)
	}
	if f.Limit != 10 || f.Offset != 5 || !f.Since.Equal(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("filter = %+v", f)
	}

	rec, _ = get(t, h, "/api/v1/journal?since=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d, want 400", rec.Code)
	}

	j.mu.Lock()
	j.entries, j.err = nil, errors.New("disk I/O error")
	j.mu.Unlock()
	rec, _ = get(t, h, "/api/v1/journal")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("list failure = %d, want 500", rec.Code)
	}
}

func TestReadOnly(t *testing.T) {
	h := newTestServer(t, Deps{Inventory: &mockInventory{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/devices", strings.NewReader("{}")))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST = %d, want 405", rec.Code)
	}
}

func TestServer_StartAndClose(t *testing.T) {
	s, err := New(Deps{Listen: "127.0.0.1:0", Logger: nopLogger{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Addr() != nil {
		t.Error("Addr() before Start should be nil")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"ok"`) {
		t.Errorf("GET /health = %d %s", resp.StatusCode, b)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_CloseBeforeStart(t *testing.T) {
	s, _ := New(Deps{Listen: ":0", Logger: nopLogger{}})
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
