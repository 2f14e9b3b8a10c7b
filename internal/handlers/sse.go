package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

const (
	salesLabel        = "Sales ($M)"
	regionProfitLabel = "Profit ($M)"
	monthlyLabel      = "Profit ($)"

	// signalsQueryKey carries the signal JSON on datastar GET requests.
	signalsQueryKey = "datastar"
	// clientQueryKey names the page instance on plain query requests.
	clientQueryKey = "client"
)

type SSEHandlers struct {
	dashboard *services.Dashboard
	clients   *clientSelections
	logger    *slog.Logger
}

func NewSSEHandlers(dashboard *services.Dashboard, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		dashboard: dashboard,
		clients:   newClientSelections(),
		logger:    logger,
	}
}

// clientSelections holds the latest selection of every page with an open
// stream, keyed by the page's client id.
type clientSelections struct {
	mu   sync.RWMutex
	byID map[string]*clientState
}

type clientState struct {
	selection models.FilterSelection
	streams   int
}

func newClientSelections() *clientSelections {
	return &clientSelections{byID: make(map[string]*clientState)}
}

// open registers a stream for id. A reconnecting page may briefly hold two
// streams; the entry lives until the last one closes.
func (c *clientSelections) open(id string, sel models.FilterSelection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.byID[id]
	if !ok {
		st = &clientState{}
		c.byID[id] = st
	}
	st.selection = sel
	st.streams++
}

// update records sel for id and reports whether id has an open stream.
func (c *clientSelections) update(id string, sel models.FilterSelection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.byID[id]
	if ok {
		st.selection = sel
	}
	return ok
}

func (c *clientSelections) get(id string) (models.FilterSelection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.byID[id]
	if !ok {
		return models.FilterSelection{}, false
	}
	return st.selection, true
}

func (c *clientSelections) close(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.byID[id]
	if !ok {
		return
	}
	st.streams--
	if st.streams <= 0 {
		delete(c.byID, id)
	}
}

func (c *clientSelections) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// filterSignals mirrors the client-side signals bound to the filter controls.
type filterSignals struct {
	ClientID string     `json:"clientId"`
	Region   string     `json:"region"`
	Category string     `json:"category"`
	Year     yearSignal `json:"year"`
}

// yearSignal accepts the year as either a JSON string or number.
type yearSignal string

func (y *yearSignal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*y = yearSignal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("year signal: %w", err)
	}
	*y = yearSignal(n.String())
	return nil
}

type regionChart struct {
	Labels      []string  `json:"labels"`
	Sales       []float64 `json:"sales"`
	Profit      []float64 `json:"profit"`
	SalesLabel  string    `json:"salesLabel"`
	ProfitLabel string    `json:"profitLabel"`
}

type productChart struct {
	Labels []string  `json:"labels"`
	Sales  []float64 `json:"sales"`
}

type monthlyChart struct {
	Labels      []string  `json:"labels"`
	Profit      []float64 `json:"profit"`
	ProfitLabel string    `json:"profitLabel"`
}

// chartSignals is patched into the client's $charts signal. The chart
// sections are omitted on no-data so the previous series stay untouched
// behind the hidden chart area.
type chartSignals struct {
	NoData   bool          `json:"noData"`
	Regions  *regionChart  `json:"regions,omitempty"`
	Products *productChart `json:"products,omitempty"`
	Monthly  *monthlyChart `json:"monthly,omitempty"`
}

func newChartSignals(view models.DashboardView) chartSignals {
	if view.NoData || view.Aggregates == nil {
		return chartSignals{NoData: true}
	}
	a := view.Aggregates

	regions := &regionChart{
		Labels:      make([]string, 0, len(a.Regions)),
		Sales:       make([]float64, 0, len(a.Regions)),
		Profit:      make([]float64, 0, len(a.Regions)),
		SalesLabel:  salesLabel,
		ProfitLabel: regionProfitLabel,
	}
	for _, rt := range a.Regions {
		regions.Labels = append(regions.Labels, rt.Region)
		regions.Sales = append(regions.Sales, rt.Sales)
		regions.Profit = append(regions.Profit, rt.Profit)
	}

	products := &productChart{
		Labels: make([]string, 0, len(a.TopProducts)),
		Sales:  make([]float64, 0, len(a.TopProducts)),
	}
	for _, p := range a.TopProducts {
		products.Labels = append(products.Labels, p.ProductName)
		products.Sales = append(products.Sales, p.Sales)
	}

	monthly := &monthlyChart{
		Labels:      make([]string, 0, len(a.Monthly)),
		Profit:      make([]float64, 0, len(a.Monthly)),
		ProfitLabel: monthlyLabel,
	}
	for _, m := range a.Monthly {
		monthly.Labels = append(monthly.Labels, m.Month)
		monthly.Profit = append(monthly.Profit, m.Profit)
	}

	return chartSignals{Regions: regions, Products: products, Monthly: monthly}
}

// readSelection prefers datastar signals and falls back to plain query
// parameters so the endpoints can be driven without the client library. The
// client id is empty when the request does not name its page.
func (h *SSEHandlers) readSelection(r *http.Request) (models.FilterSelection, string, error) {
	if r.Method == http.MethodGet && !r.URL.Query().Has(signalsQueryKey) {
		sel, err := selectionFromQuery(r)
		return sel, r.URL.Query().Get(clientQueryKey), err
	}

	var signals filterSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return models.FilterSelection{}, "", errors.BadRequestWrap(err, "invalid datastar signals")
	}
	sel, err := models.ParseFilterSelection(signals.Region, signals.Category, string(signals.Year))
	if err != nil {
		return models.FilterSelection{}, "", errors.ValidationWrap(err, "invalid filter selection")
	}
	return sel, signals.ClientID, nil
}

func (h *SSEHandlers) patchView(ctx context.Context, sse *datastar.ServerSentEventGenerator, view models.DashboardView) error {
	html, err := templates.Render(ctx, templates.Summary(view))
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if err := sse.PatchElements(html); err != nil {
		return fmt.Errorf("patch summary: %w", err)
	}

	signals, err := json.Marshal(map[string]any{
		"charts":        newChartSignals(view),
		"filteredCount": view.FilteredCount,
		"recordCount":   view.RecordCount,
	})
	if err != nil {
		return fmt.Errorf("marshal chart signals: %w", err)
	}
	if err := sse.PatchSignals(signals); err != nil {
		return fmt.Errorf("patch chart signals: %w", err)
	}
	return nil
}

// patchFilters re-renders the filter controls from the current dataset.
func (h *SSEHandlers) patchFilters(ctx context.Context, sse *datastar.ServerSentEventGenerator, sel models.FilterSelection) error {
	html, err := templates.Render(ctx, templates.Filters(h.dashboard.Options(), sel))
	if err != nil {
		return fmt.Errorf("render filters: %w", err)
	}
	if err := sse.PatchElements(html); err != nil {
		return fmt.Errorf("patch filters: %w", err)
	}
	return nil
}

// HandleDashboard recomputes the view for the selection carried by the
// request and patches the summary and chart signals once. The selection is
// remembered for the page's stream.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sel, clientID, err := h.readSelection(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	if clientID != "" {
		h.clients.update(clientID, sel)
	}

	sse := datastar.NewSSE(w, r)
	view := h.dashboard.View(r.Context(), sel)
	if err := h.patchView(r.Context(), sse, view); err != nil {
		h.logger.Error("patch dashboard", "error", err, "region", sel.Region, "category", sel.Category, "year", sel.YearLabel())
	}
}

// HandleStream keeps the connection open, patches the filters and the view
// and then re-patches both every time the dataset is replaced, using the
// page's latest selection.
func (h *SSEHandlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	sel, clientID, err := h.readSelection(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return
	}
	if clientID == "" {
		clientID = uuid.New().String()
	}

	h.clients.open(clientID, sel)
	defer h.clients.close(clientID)

	updates := make(chan uint64, 1)
	cancel := h.dashboard.Subscribe(func(version uint64) {
		select {
		case updates <- version:
		default:
		}
	})
	defer cancel()

	sse := datastar.NewSSE(w, r)
	if err := h.stream(r.Context(), sse, clientID, updates); err != nil {
		h.logger.Warn("dashboard stream ended", "client", clientID, "error", err)
	}
}

func (h *SSEHandlers) stream(ctx context.Context, sse *datastar.ServerSentEventGenerator, clientID string, updates <-chan uint64) error {
	if err := h.patchClient(ctx, sse, clientID); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case version := <-updates:
			h.logger.Debug("dataset replaced, re-patching stream", "client", clientID, "version", version)
			if err := h.patchClient(ctx, sse, clientID); err != nil {
				return err
			}
		}
	}
}

func (h *SSEHandlers) patchClient(ctx context.Context, sse *datastar.ServerSentEventGenerator, clientID string) error {
	sel, _ := h.clients.get(clientID)
	if err := h.patchFilters(ctx, sse, sel); err != nil {
		return err
	}
	return h.patchView(ctx, sse, h.dashboard.View(ctx, sel))
}
