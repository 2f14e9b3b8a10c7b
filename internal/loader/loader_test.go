package loader

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/models"
)

const sampleJSON = `[
  {"Region":"East","Product Category":"Kitchen","Product Name":"Kettle","Sales":100,"Profit":20,"Order Date":"2017-01-15"},
  {"Region":"West","Product Category":"Laundry","Product Name":"Washer","Sales":200,"Profit":50,"Order Date":"2018-06-01"}
]`

func sampleRecords() []models.Record {
	return []models.Record{
		{Region: "East", Category: "Kitchen", ProductName: "Kettle", Sales: 100, Profit: 20,
			OrderDate: time.Date(2017, 1, 15, 0, 0, 0, 0, time.UTC)},
		{Region: "West", Category: "Laundry", ProductName: "Washer", Sales: 200, Profit: 50,
			OrderDate: time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJSONFile_Load(t *testing.T) {
	src := NewJSONFile(writeTempFile(t, "data.json", sampleJSON))

	got, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(sampleRecords(), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONFile_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(t.TempDir(), "nope.json")},
		{"not an array", writeTempFile(t, "obj.json", `{"Region":"East"}`)},
		{"wrong type", writeTempFile(t, "bad.json", `[{"Sales":"lots"}]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewJSONFile(tt.path).Load(context.Background()); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestJSONFile_MalformedDateKept(t *testing.T) {
	path := writeTempFile(t, "data.json", `[{"Region":"East","Sales":1,"Order Date":"someday"}]`)

	got, err := NewJSONFile(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].HasDate() {
		t.Errorf("record with bad date should load undated, got %+v", got)
	}
}

func TestHTTP_Load(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, sampleJSON)
	}))
	defer ts.Close()

	got, err := NewHTTP(ts.URL+"/data.json", ts.Client()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(sampleRecords(), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewHTTP(ts.URL+"/missing", ts.Client()).Load(context.Background()); err == nil {
		t.Error("Load() should fail on 404")
	}
}

func TestHTTP_LoadCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := NewHTTP(ts.URL, ts.Client()).Load(ctx); err == nil {
		t.Error("Load() should fail when the context expires")
	}
}

func TestCSV_Load(t *testing.T) {
	content := "Order Date,Region,Product Category,Product Name,Sales,Profit\n" +
		"2017-01-15,East,Kitchen,Kettle,100,20\n" +
		"2018-06-01,West,Laundry,Washer,\"$200\",50\n"

	got, err := NewCSV(writeTempFile(t, "data.csv", content), discardLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(sampleRecords(), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestCSV_MalformedAmountReadsAsZero(t *testing.T) {
	content := "Order Date,Region,Product Category,Product Name,Sales,Profit\n" +
		"2017-01-15,East,Kitchen,Kettle,100,20\n" +
		"2018-06-02,West,Laundry,Broken,abc,1\n"

	got, err := NewCSV(writeTempFile(t, "data.csv", content), discardLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []models.Record{
		{Region: "East", Category: "Kitchen", ProductName: "Kettle", Sales: 100, Profit: 20,
			OrderDate: time.Date(2017, 1, 15, 0, 0, 0, 0, time.UTC)},
		{Region: "West", Category: "Laundry", ProductName: "Broken", Sales: 0, Profit: 1,
			OrderDate: time.Date(2018, 6, 2, 0, 0, 0, 0, time.UTC)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestCSV_QuotedNamesAndAliases(t *testing.T) {
	content := "region,category,product,sales,profit,date\n" +
		"East,Kitchen,\"Kettle, 1.7L\",\"1,250.50\",-3,11/8/2016\n"

	got, err := NewCSV(writeTempFile(t, "data.csv", content), discardLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	if got[0].ProductName != "Kettle, 1.7L" || got[0].Sales != 1250.50 || got[0].Profit != -3 {
		t.Errorf("unexpected record %+v", got[0])
	}
	if !got[0].OrderDate.Equal(time.Date(2016, 11, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("OrderDate = %v", got[0].OrderDate)
	}
}

func TestCSV_PreservesOrderAcrossBatches(t *testing.T) {
	var b strings.Builder
	b.WriteString("Region,Product Category,Product Name,Sales,Profit,Order Date\n")
	const n = batchSize*2 + 17
	for i := 0; i < n; i++ {
		b.WriteString("East,Kitchen,P,1,0,2017-01-01\n")
	}
	// mark the last row so its position can be checked
	b.WriteString("East,Kitchen,Last,9,0,2017-01-01\n")

	got, err := NewCSV(writeTempFile(t, "big.csv", b.String()), discardLogger()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != n+1 {
		t.Fatalf("records = %d, want %d", len(got), n+1)
	}
	if got[len(got)-1].ProductName != "Last" {
		t.Errorf("last record = %q, want Last", got[len(got)-1].ProductName)
	}
}

func TestCSV_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty file", "", "empty file"},
		{"missing column", "Region,Sales\nEast,1\n", "missing column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSV(writeTempFile(t, "data.csv", tt.content), discardLogger()).Load(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func createSalesDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE sales (
			region TEXT NOT NULL,
			product_category TEXT NOT NULL,
			product_name TEXT NOT NULL,
			sales REAL NOT NULL,
			profit REAL NOT NULL,
			order_date TEXT
		)`,
		`INSERT INTO sales VALUES ('East', 'Kitchen', 'Kettle', 100, 20, '2017-01-15')`,
		`INSERT INTO sales VALUES ('West', 'Laundry', 'Washer', 200, 50, '2018-06-01')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return path
}

func TestSQLite_Load(t *testing.T) {
	src, err := NewSQLite(createSalesDB(t), "sales")
	if err != nil {
		t.Fatal(err)
	}

	got, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(sampleRecords(), got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLite_InvalidTable(t *testing.T) {
	if _, err := NewSQLite("x.db", "sales; DROP TABLE sales"); err == nil {
		t.Error("NewSQLite() should reject unsafe table names")
	}

	src, err := NewSQLite(createSalesDB(t), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Load(context.Background()); err == nil {
		t.Error("Load() should fail for a missing table")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		cfg      config.DataConfig
		wantName string
		wantErr  bool
	}{
		{config.DataConfig{Source: config.SourceJSON, Path: "data.json"}, "json:data.json", false},
		{config.DataConfig{Source: config.SourceHTTP, URL: "http://x/data.json"}, "http:http://x/data.json", false},
		{config.DataConfig{Source: config.SourceCSV, Path: "data.csv"}, "csv:data.csv", false},
		{config.DataConfig{Source: config.SourceSQLite, Path: "s.db", Table: "sales"}, "sqlite:s.db#sales", false},
		{config.DataConfig{Source: "excel"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Source, func(t *testing.T) {
			src, err := New(tt.cfg, discardLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && src.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", src.Name(), tt.wantName)
			}
		})
	}
}
