// Package templates holds the dashboard's HTML components. The .templ
// files are the source; run `templ generate` after editing them.
package templates

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"sales-dashboard/internal/models"
)

const (
	Title         = "Electrical Appliances Sales Dashboard"
	NoDataMessage = "No data matches filters."
	SummaryID     = "summary"
	FiltersID     = "filters"
)

// FormatMoney groups thousands and keeps at most two decimals.
func FormatMoney(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

// Render writes c into a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var b strings.Builder
	if err := c.Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func rootSignals(clientID string) string {
	return fmt.Sprintf("{clientId: '%s', region: '', category: '', year: 'all', charts: {}}", clientID)
}

func yearClick(year int) string {
	return "$year = '" + strconv.Itoa(year) + "'; @get('/sse/dashboard')"
}

func yearActive(year int) string {
	return "$year == '" + strconv.Itoa(year) + "'"
}

func marginLabel(m models.Margin) string {
	if !m.Defined {
		return m.String()
	}
	return m.String() + "%"
}

func chartScriptTag() string {
	return "<script>" + chartScript + "</script>"
}

const chartScript = `
const dashboardCharts = {};
function upsertChart(id, config) {
  const el = document.getElementById(id);
  if (!el || typeof Chart === "undefined") return;
  if (dashboardCharts[id]) dashboardCharts[id].destroy();
  dashboardCharts[id] = new Chart(el, config);
}
function renderCharts(c) {
  if (!c || c.noData || !c.regions) return;
  upsertChart("region-chart", {type: "bar", data: {labels: c.regions.labels, datasets: [
    {label: c.regions.salesLabel, data: c.regions.sales, backgroundColor: "rgba(54, 162, 235, 0.6)"},
    {label: c.regions.profitLabel, data: c.regions.profit, backgroundColor: "rgba(75, 192, 192, 0.6)"}]},
    options: {responsive: true, maintainAspectRatio: false, scales: {y: {beginAtZero: true}}}});
  upsertChart("products-chart", {type: "pie", data: {labels: c.products.labels, datasets: [
    {data: c.products.sales, backgroundColor: ["#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0", "#9966FF"]}]},
    options: {responsive: true, maintainAspectRatio: false, plugins: {legend: {position: "bottom"}}}});
  upsertChart("monthly-chart", {type: "line", data: {labels: c.monthly.labels, datasets: [
    {label: c.monthly.profitLabel, data: c.monthly.profit, borderColor: "#4BC0C0", fill: true, tension: 0.4}]},
    options: {responsive: true, maintainAspectRatio: false, plugins: {legend: {display: false}}}});
}
`
