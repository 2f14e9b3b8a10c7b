package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sales-dashboard/internal/config"
)

const testData = `[
  {"Region": "East", "Product Category": "Kitchen", "Product Name": "Kettle", "Sales": 100, "Profit": 20, "Order Date": "2016-01-05"},
  {"Region": "West", "Product Category": "Laundry", "Product Name": "Washer", "Sales": 200, "Profit": 50, "Order Date": "2016-03-10"},
  {"Region": "East", "Product Category": "Laundry", "Product Name": "Dryer", "Sales": 150, "Profit": -10, "Order Date": "not a date"}
]`

func testConfig(dataPath string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Data: config.DataConfig{
			Source:      config.SourceJSON,
			Path:        dataPath,
			LoadTimeout: 5 * time.Second,
		},
		Dashboard: config.DashboardConfig{Years: []int{2016, 2017}},
		Logger:    config.LoggerConfig{Level: "error", Format: "text"},
		Security: config.SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  50,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
	}
}

// Test helper to build the full application over a temp JSON dataset
func newTestApp(t *testing.T, data string) *app {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.json")
	if data != "" {
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	a, err := newApp(testConfig(path), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	select {
	case <-a.loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("initial load did not finish")
	}
	return a
}

func get(a *app, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestApp_InitialLoad(t *testing.T) {
	a := newTestApp(t, testData)

	if n := len(a.dashboard.Records()); n != 3 {
		t.Fatalf("expected 3 records, got %d", n)
	}

	w := get(a, "/api/view")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Data struct {
			Aggregates struct {
				Summary struct {
					TotalSales float64 `json:"total_sales"`
				} `json:"summary"`
				Monthly []json.RawMessage `json:"monthly"`
				Undated int               `json:"undated"`
			} `json:"aggregates"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	aggs := resp.Data.Aggregates
	if aggs.Summary.TotalSales != 450 {
		t.Errorf("total sales = %v, want 450", aggs.Summary.TotalSales)
	}
	if len(aggs.Monthly) != 2 || aggs.Undated != 1 {
		t.Errorf("monthly = %d points with %d undated, want 2 and 1", len(aggs.Monthly), aggs.Undated)
	}
}

func TestApp_YearFilterExcludesUndated(t *testing.T) {
	a := newTestApp(t, testData)

	w := get(a, "/api/top-products?year=2016")
	if !strings.Contains(w.Body.String(), "Washer") || strings.Contains(w.Body.String(), "Dryer") {
		t.Errorf("year filter should drop the undated record: %s", w.Body.String())
	}
}

func TestApp_LoadFailureServesEmptyDataset(t *testing.T) {
	a := newTestApp(t, "")

	if n := len(a.dashboard.Records()); n != 0 {
		t.Fatalf("expected empty dataset, got %d records", n)
	}
	if failures := a.dashboard.Stats()["load_failures"]; failures != int64(1) {
		t.Errorf("load_failures = %v, want 1", failures)
	}

	w := get(a, "/api/summary")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"no_data":true`) {
		t.Errorf("expected no-data summary, got %d %s", w.Code, w.Body.String())
	}

	page := get(a, "/")
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "All Regions") {
		t.Errorf("page should still render on an empty dataset")
	}
}

func TestApp_MiddlewareHeaders(t *testing.T) {
	a := newTestApp(t, testData)

	w := get(a, "/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestApp_ErrorHandling(t *testing.T) {
	a := newTestApp(t, testData)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/nonexistent", http.StatusNotFound},
		{http.MethodPost, "/api/summary", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/summary?year=twenty", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			a.handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestApp_Reload(t *testing.T) {
	a := newTestApp(t, testData)
	before := a.dashboard.Version()

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if a.dashboard.Version() != before+1 {
		t.Errorf("version = %d, want %d", a.dashboard.Version(), before+1)
	}
}
