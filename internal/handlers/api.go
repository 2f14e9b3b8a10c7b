package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const (
	cacheControl = "Cache-Control"
	noStore      = "no-store"
)

type APIHandlers struct {
	dashboard *services.Dashboard
	source    services.Source
	logger    *slog.Logger
}

// NewAPIHandlers wires the JSON endpoints. source may be nil, in which case
// reloads are refused.
func NewAPIHandlers(dashboard *services.Dashboard, source services.Source, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		source:    source,
		logger:    logger,
	}
}

// selectionResponse wraps one aggregate for a selection. Result is omitted
// when the selection matched nothing.
type selectionResponse struct {
	Selection models.FilterSelection `json:"selection"`
	NoData    bool                   `json:"no_data"`
	Result    any                    `json:"result,omitempty"`
}

func (h *APIHandlers) view(w http.ResponseWriter, r *http.Request) (models.DashboardView, bool) {
	sel, err := selectionFromQuery(r)
	if err != nil {
		errors.WriteError(w, r, h.logger, err)
		return models.DashboardView{}, false
	}
	return h.dashboard.View(r.Context(), sel), true
}

func (h *APIHandlers) writeSelection(w http.ResponseWriter, view models.DashboardView, pick func(*models.Aggregates) any) {
	resp := selectionResponse{Selection: view.Selection, NoData: view.NoData}
	if view.Aggregates != nil {
		resp.Result = pick(view.Aggregates)
	}
	errors.WriteSuccessWithHeaders(w, resp, map[string]string{cacheControl: noStore})
}

func (h *APIHandlers) HandleView(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	errors.WriteSuccessWithHeaders(w, view, map[string]string{cacheControl: noStore})
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	h.writeSelection(w, view, func(a *models.Aggregates) any { return a.Summary })
}

func (h *APIHandlers) HandleRegions(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	h.writeSelection(w, view, func(a *models.Aggregates) any { return a.Regions })
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	h.writeSelection(w, view, func(a *models.Aggregates) any { return a.TopProducts })
}

func (h *APIHandlers) HandleMonthlyProfit(w http.ResponseWriter, r *http.Request) {
	view, ok := h.view(w, r)
	if !ok {
		return
	}
	h.writeSelection(w, view, func(a *models.Aggregates) any { return a.Monthly })
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.dashboard.Options(), map[string]string{cacheControl: noStore})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
		"records":   len(h.dashboard.Records()),
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.dashboard.Stats())
}

// HandleReload refetches the dataset synchronously. Concurrent reloads share
// one fetch, which keeps running if this client disconnects.
func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		errors.WriteError(w, r, h.logger, errors.NotFound("no data source configured"))
		return
	}

	if err := h.dashboard.Load(r.Context(), h.source); err != nil {
		errors.WriteError(w, r, h.logger, errors.ServiceUnavailableWrap(err, "dataset reload failed"))
		return
	}

	errors.WriteSuccess(w, h.dashboard.Stats())
}

func selectionFromQuery(r *http.Request) (models.FilterSelection, error) {
	q := r.URL.Query()
	sel, err := models.ParseFilterSelection(q.Get("region"), q.Get("category"), q.Get("year"))
	if err != nil {
		return models.FilterSelection{}, errors.ValidationWrap(err, "invalid filter selection")
	}
	return sel, nil
}
