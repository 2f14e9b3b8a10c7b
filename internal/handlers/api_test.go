package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Test helper to create a dashboard holding a small dataset
func createTestDashboard() *services.Dashboard {
	d := services.NewDashboard([]int{2016, 2017}, testLogger())
	d.Replace([]models.Record{
		{Region: "East", Category: "Kitchen", ProductName: "Kettle", Sales: 100, Profit: 20, OrderDate: date(2016, 1, 5)},
		{Region: "West", Category: "Laundry", ProductName: "Washer", Sales: 200, Profit: 50, OrderDate: date(2016, 3, 10)},
		{Region: "East", Category: "Laundry", ProductName: "Dryer", Sales: 150, Profit: -10, OrderDate: date(2017, 1, 20)},
	})
	return d
}

type stubSource struct {
	records []models.Record
	err     error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(ctx context.Context) ([]models.Record, error) {
	return s.records, s.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func TestNewAPIHandlers(t *testing.T) {
	dashboard := createTestDashboard()
	logger := testLogger()

	handlers := NewAPIHandlers(dashboard, nil, logger)

	if handlers.dashboard != dashboard {
		t.Error("NewAPIHandlers() should set dashboard field")
	}
	if handlers.logger != logger {
		t.Error("NewAPIHandlers() should set logger field")
	}
}

func TestAPIHandlers_HandleView(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/view?region=East&year=2016", nil)
	w := httptest.NewRecorder()
	handlers.HandleView(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected Cache-Control no-store, got %q", cc)
	}

	env := decodeEnvelope(t, w)
	var view struct {
		Selection     models.FilterSelection `json:"selection"`
		RecordCount   int                    `json:"record_count"`
		FilteredCount int                    `json:"filtered_count"`
		NoData        bool                   `json:"no_data"`
		Aggregates    *struct {
			Summary struct {
				TotalSales  float64  `json:"total_sales"`
				TotalProfit float64  `json:"total_profit"`
				AvgMargin   *float64 `json:"avg_margin"`
			} `json:"summary"`
		} `json:"aggregates"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}

	if view.RecordCount != 3 || view.FilteredCount != 1 {
		t.Errorf("counts = %d/%d, want 3/1", view.RecordCount, view.FilteredCount)
	}
	if view.NoData || view.Aggregates == nil {
		t.Fatal("expected aggregates for East 2016")
	}
	s := view.Aggregates.Summary
	if s.TotalSales != 100 || s.TotalProfit != 20 {
		t.Errorf("summary = %+v, want sales 100 profit 20", s)
	}
	if s.AvgMargin == nil || *s.AvgMargin != 20 {
		t.Errorf("avg margin = %v, want 20", s.AvgMargin)
	}
}

func TestAPIHandlers_HandleSummary_NoData(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/summary?region=West&year=2017", nil)
	w := httptest.NewRecorder()
	handlers.HandleSummary(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		NoData bool            `json:"no_data"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.NoData {
		t.Error("expected no_data for an empty selection")
	}
	if resp.Result != nil {
		t.Errorf("expected result to be omitted, got %s", resp.Result)
	}
}

func TestAPIHandlers_HandleRegions(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/regions", nil)
	w := httptest.NewRecorder()
	handlers.HandleRegions(w, req)

	var resp struct {
		Result []models.RegionTotal `json:"result"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &resp); err != nil {
		t.Fatal(err)
	}

	if len(resp.Result) != 2 || resp.Result[0].Region != "East" || resp.Result[1].Region != "West" {
		t.Fatalf("regions = %+v, want East then West", resp.Result)
	}
	if math.Abs(resp.Result[0].Sales-250e-6) > 1e-12 {
		t.Errorf("East sales = %v, want 250e-6", resp.Result[0].Sales)
	}
}

func TestAPIHandlers_HandleTopProducts(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/top-products?category=Laundry", nil)
	w := httptest.NewRecorder()
	handlers.HandleTopProducts(w, req)

	var resp struct {
		Result []models.ProductSales `json:"result"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &resp); err != nil {
		t.Fatal(err)
	}

	if len(resp.Result) != 2 {
		t.Fatalf("expected 2 products, got %d", len(resp.Result))
	}
	if resp.Result[0].ProductName != "Washer" || resp.Result[1].ProductName != "Dryer" {
		t.Errorf("products not sorted by sales: %+v", resp.Result)
	}
}

func TestAPIHandlers_HandleMonthlyProfit(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/monthly-profit", nil)
	w := httptest.NewRecorder()
	handlers.HandleMonthlyProfit(w, req)

	var resp struct {
		Result []models.MonthlyProfit `json:"result"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &resp); err != nil {
		t.Fatal(err)
	}

	want := []string{"2016-01", "2016-03", "2017-01"}
	if len(resp.Result) != len(want) {
		t.Fatalf("expected %d months, got %+v", len(want), resp.Result)
	}
	for i, m := range resp.Result {
		if m.Month != want[i] {
			t.Errorf("month[%d] = %q, want %q", i, m.Month, want[i])
		}
	}
}

func TestAPIHandlers_HandleOptions(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/options?region=East", nil)
	w := httptest.NewRecorder()
	handlers.HandleOptions(w, req)

	var opts models.FilterOptions
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &opts); err != nil {
		t.Fatal(err)
	}

	if strings.Join(opts.Regions, ",") != "East,West" {
		t.Errorf("regions = %v", opts.Regions)
	}
	if strings.Join(opts.Categories, ",") != "Kitchen,Laundry" {
		t.Errorf("categories = %v", opts.Categories)
	}
	if len(opts.Years) != 2 || opts.Years[0] != 2016 {
		t.Errorf("years = %v", opts.Years)
	}
}

func TestAPIHandlers_InvalidYear(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		path    string
	}{
		{"view", handlers.HandleView, "/api/view?year=abc"},
		{"summary", handlers.HandleSummary, "/api/summary?year=-1"},
		{"regions", handlers.HandleRegions, "/api/regions?year=20x6"},
		{"top-products", handlers.HandleTopProducts, "/api/top-products?year=99999"},
		{"monthly-profit", handlers.HandleMonthlyProfit, "/api/monthly-profit?year=1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Success || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("unexpected error envelope: %+v", env)
			}
		})
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var health map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected status healthy, got %v", health["status"])
	}
	if health["records"] != float64(3) {
		t.Errorf("expected 3 records, got %v", health["records"])
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	var stats map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &stats); err != nil {
		t.Fatal(err)
	}

	expectedKeys := []string{"record_count", "version", "last_loaded", "load_failures", "regions", "categories", "subscribers"}
	for _, key := range expectedKeys {
		if _, ok := stats[key]; !ok {
			t.Errorf("expected stats to contain key %q", key)
		}
	}
	if stats["record_count"] != float64(3) {
		t.Errorf("record_count = %v, want 3", stats["record_count"])
	}
}

func TestAPIHandlers_HandleReload(t *testing.T) {
	dashboard := createTestDashboard()
	src := &stubSource{records: []models.Record{
		{Region: "South", Category: "Kitchen", ProductName: "Toaster", Sales: 40, Profit: 4, OrderDate: date(2018, 6, 1)},
	}}
	handlers := NewAPIHandlers(dashboard, src, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if n := len(dashboard.Records()); n != 1 {
		t.Errorf("dataset should be replaced, have %d records", n)
	}
}

func TestAPIHandlers_HandleReload_Failure(t *testing.T) {
	dashboard := createTestDashboard()
	handlers := NewAPIHandlers(dashboard, &stubSource{err: stderrors.New("connection refused")}, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error == nil || env.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("unexpected error envelope: %+v", env)
	}
	if n := len(dashboard.Records()); n != 3 {
		t.Errorf("failed reload should keep the dataset, have %d records", n)
	}
}

func TestAPIHandlers_HandleReload_NoSource(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

// Test that JSON handlers set correct headers consistently
func TestAPIHandlers_HeaderConsistency(t *testing.T) {
	handlers := NewAPIHandlers(createTestDashboard(), nil, testLogger())

	endpoints := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"view", handlers.HandleView},
		{"summary", handlers.HandleSummary},
		{"regions", handlers.HandleRegions},
		{"top-products", handlers.HandleTopProducts},
		{"monthly-profit", handlers.HandleMonthlyProfit},
		{"options", handlers.HandleOptions},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			endpoint.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %q", ct)
			}
			if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
				t.Errorf("expected Cache-Control no-store, got %q", cc)
			}
		})
	}
}
