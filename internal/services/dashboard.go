package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
)

// DefaultLoadTimeout bounds a dataset fetch unless SetLoadTimeout says otherwise.
const DefaultLoadTimeout = 30 * time.Second

// Source supplies the full dataset. Implementations live in the loader package.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]models.Record, error)
}

// Dashboard owns the current dataset. Every view is recomputed from the
// full in-memory records; nothing derived is cached between calls.
type Dashboard struct {
	mu       sync.RWMutex
	records  []models.Record
	version  uint64
	loadedAt time.Time
	source   string

	years        []int
	loads        singleflight.Group
	loadTimeout  time.Duration
	loadFailures atomic.Int64

	subMu       sync.Mutex
	subscribers map[string]func(version uint64)

	logger *slog.Logger
}

func NewDashboard(years []int, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		records:     []models.Record{},
		years:       append([]int(nil), years...),
		loadTimeout: DefaultLoadTimeout,
		subscribers: make(map[string]func(uint64)),
		logger:      logger,
	}
}

// SetLoadTimeout bounds each shared fetch started by Load. Non-positive
// values are ignored.
func (d *Dashboard) SetLoadTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.loadTimeout = timeout
	}
}

// Replace swaps in a new dataset and notifies subscribers.
func (d *Dashboard) Replace(records []models.Record) {
	if records == nil {
		records = []models.Record{}
	}

	d.mu.Lock()
	d.records = records
	d.version++
	d.loadedAt = time.Now()
	version := d.version
	d.mu.Unlock()

	d.notify(version)
}

// Load fetches the dataset from src and replaces the current one. Concurrent
// loads from the same source share one fetch. The fetch runs detached from
// ctx, bounded by the load timeout, so a caller that goes away does not fail
// the others. On failure the current dataset is kept.
func (d *Dashboard) Load(ctx context.Context, src Source) error {
	_, err, shared := d.loads.Do(src.Name(), func() (any, error) {
		start := time.Now()
		d.logger.Info("loading dataset", "source", src.Name())

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.loadTimeout)
		defer cancel()

		records, err := src.Load(loadCtx)
		if err != nil {
			d.loadFailures.Add(1)
			d.logger.Error("dataset load failed",
				"source", src.Name(),
				"error", err,
				"duration", time.Since(start),
			)
			return nil, fmt.Errorf("load %s: %w", src.Name(), err)
		}

		d.mu.Lock()
		d.source = src.Name()
		d.mu.Unlock()
		d.Replace(records)

		d.logger.Info("dataset loaded",
			"source", src.Name(),
			"records", len(records),
			"duration", time.Since(start),
		)
		return nil, nil
	})
	if shared {
		d.logger.Debug("joined in-flight dataset load", "source", src.Name())
	}
	return err
}

// LoadAsync starts Load in the background. Errors are logged by Load.
func (d *Dashboard) LoadAsync(ctx context.Context, src Source) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- d.Load(ctx, src)
		close(done)
	}()
	return done
}

// Records returns the current dataset. Callers must not modify it.
func (d *Dashboard) Records() []models.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.records
}

func (d *Dashboard) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Options derives filter choices from the unfiltered dataset.
func (d *Dashboard) Options() models.FilterOptions {
	return Options(d.Records(), d.years)
}

// View filters the current dataset by sel and aggregates the result.
func (d *Dashboard) View(ctx context.Context, sel models.FilterSelection) models.DashboardView {
	_, span := observability.StartSpan(ctx, "dashboard.view")
	defer span.Finish()

	records := d.Records()
	filtered := ApplyFilters(records, sel)

	view := models.DashboardView{
		Selection:     sel,
		Options:       Options(records, d.years),
		RecordCount:   len(records),
		FilteredCount: len(filtered),
	}

	if aggs, ok := Aggregate(filtered); ok {
		view.Aggregates = &aggs
	} else {
		view.NoData = true
	}

	span.SetTag("records", strconv.Itoa(len(records)))
	span.SetTag("filtered", strconv.Itoa(len(filtered)))
	d.logger.DebugContext(ctx, "dashboard recomputed",
		"region", sel.Region,
		"category", sel.Category,
		"year", sel.YearLabel(),
		"filtered", len(filtered),
		"no_data", view.NoData,
		"trace_id", span.TraceID,
	)
	return view
}

// Subscribe registers fn to run after every dataset replacement. fn runs on
// the replacing goroutine and must not block.
func (d *Dashboard) Subscribe(fn func(version uint64)) (cancel func()) {
	id := uuid.New().String()

	d.subMu.Lock()
	d.subscribers[id] = fn
	d.subMu.Unlock()

	return func() {
		d.subMu.Lock()
		delete(d.subscribers, id)
		d.subMu.Unlock()
	}
}

func (d *Dashboard) notify(version uint64) {
	d.subMu.Lock()
	fns := make([]func(uint64), 0, len(d.subscribers))
	for _, fn := range d.subscribers {
		fns = append(fns, fn)
	}
	d.subMu.Unlock()

	for _, fn := range fns {
		fn(version)
	}
}

// Stats is used by the admin endpoint.
func (d *Dashboard) Stats() map[string]any {
	d.mu.RLock()
	records := d.records
	stats := map[string]any{
		"record_count":  len(d.records),
		"version":       d.version,
		"last_loaded":   d.loadedAt,
		"source":        d.source,
		"load_failures": d.loadFailures.Load(),
	}
	d.mu.RUnlock()

	opts := Options(records, d.years)
	stats["regions"] = len(opts.Regions)
	stats["categories"] = len(opts.Categories)

	d.subMu.Lock()
	stats["subscribers"] = len(d.subscribers)
	d.subMu.Unlock()

	return stats
}
