package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/postpulse/config"
	"github.com/use-agent/postpulse/metrics"
	"github.com/use-agent/postpulse/models"
)

type fakeSource struct {
	stats    models.ProgressStats
	failures int
}

func (f *fakeSource) Progress() models.ProgressStats { return f.stats }
func (f *fakeSource) ConsecutiveFailures() int { return f.failures }

func testConfig(keys ...string) config.ServerConfig {
	return config.ServerConfig{Mode: "test", APIKeys: keys, RequestsPerSecond: 100, Burst: 100}
}

func serve(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     string
	}{
		{"healthy", 0, "healthy"},
		{"degraded on failure streak", 3, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{stats: models.ProgressStats{State: "running"}, failures: tt.failures}
			r := NewRouter(testConfig("secret"), src, nil, time.Now())

			w := serve(t, r, "/health", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var got models.HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Status != tt.want || got.State != "running" || got.ConsecutiveFailures != tt.failures {
				t.Errorf("health = %+v", got)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	want := models.ProgressStats{
		State:              "running",
		WindowStart:        10,
		WindowEnd:          20,
		LastCompletedIndex: 13,
		Processed:          4,
		Succeeded:          3,
		Failed:             1,
		Saved:              0,
	}
	r := NewRouter(testConfig(), &fakeSource{stats: want}, nil, time.Now())

	w := serve(t, r, "/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got models.ProgressStats
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestProtectedRoutesRequireKey(t *testing.T) {
	r := NewRouter(testConfig("secret"), &fakeSource{}, nil, time.Now())

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header", map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(t, r, "/progress", tt.header); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.IncItem(string(models.StatusSuccess))
	m.IncCheckpoint()
	r := NewRouter(testConfig(), &fakeSource{}, m.Registry, time.Now())

	w := serve(t, r, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`postpulse_items_total{status="success"} 1`,
		"postpulse_checkpoints_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerSecond = 0.001
	cfg.Burst = 2
	r := NewRouter(cfg, &fakeSource{}, nil, time.Now())

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = serve(t, r, "/progress", nil).Code
	}
	if diff := cmp.Diff([]int{200, 200, 429}, codes); diff != "" {
		t.Errorf("status codes mismatch (-want +got):\n%s", diff)
	}
}
