package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AllYears is the Year value of a selection that spans every year.
const AllYears = 0

// FilterSelection is the user's current constraint set. Empty strings
// leave region and category unconstrained.
type FilterSelection struct {
	Region   string `json:"region"`
	Category string `json:"category"`
	Year     int    `json:"year"`
}

func (s FilterSelection) IsEmpty() bool {
	return s.Region == "" && s.Category == "" && s.Year == AllYears
}

// YearLabel renders the year the way the filter buttons name it.
func (s FilterSelection) YearLabel() string {
	if s.Year == AllYears {
		return "all"
	}
	return strconv.Itoa(s.Year)
}

// ParseFilterSelection builds a selection from raw query or signal values.
// year may be empty, "all" or a calendar year.
func ParseFilterSelection(region, category, year string) (FilterSelection, error) {
	sel := FilterSelection{
		Region:   region,
		Category: category,
	}

	year = strings.TrimSpace(year)
	if year == "" || strings.EqualFold(year, "all") {
		return sel, nil
	}

	y, err := strconv.Atoi(year)
	if err != nil {
		return FilterSelection{}, fmt.Errorf("year %q is not a number", year)
	}
	if y < 1 || y > 9999 {
		return FilterSelection{}, fmt.Errorf("year %d out of range", y)
	}
	sel.Year = y
	return sel, nil
}

// Margin is profit as a percentage of sales, rounded to one decimal.
// Defined is false when total sales are zero.
type Margin struct {
	Percent float64
	Defined bool
}

func NewMargin(profit, sales float64) Margin {
	if sales == 0 {
		return Margin{}
	}
	pct := profit / sales * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return Margin{}
	}
	return Margin{Percent: math.Round(pct*10) / 10, Defined: true}
}

func (m Margin) String() string {
	if !m.Defined {
		return "n/a"
	}
	return strconv.FormatFloat(m.Percent, 'f', 1, 64)
}

func (m Margin) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return []byte(m.String()), nil
}

type Summary struct {
	TotalSales  float64 `json:"total_sales"`
	TotalProfit float64 `json:"total_profit"`
	AvgMargin   Margin  `json:"avg_margin"`
}

// RegionTotal carries sales and profit in millions.
type RegionTotal struct {
	Region string  `json:"region"`
	Sales  float64 `json:"sales"`
	Profit float64 `json:"profit"`
}

type ProductSales struct {
	ProductName string  `json:"product_name"`
	Sales       float64 `json:"sales"`
}

type MonthlyProfit struct {
	Month  string  `json:"month"`
	Profit float64 `json:"profit"`
}

type Aggregates struct {
	Summary     Summary         `json:"summary"`
	Regions     []RegionTotal   `json:"regions"`
	TopProducts []ProductSales  `json:"top_products"`
	Monthly     []MonthlyProfit `json:"monthly"`
	// Undated counts records left out of Monthly for lack of an order date.
	Undated int `json:"undated"`
}

type FilterOptions struct {
	Regions    []string `json:"regions"`
	Categories []string `json:"categories"`
	Years      []int    `json:"years"`
}

// DashboardView is everything the rendering layer needs for one selection.
// Aggregates is nil when NoData is set.
type DashboardView struct {
	Selection     FilterSelection `json:"selection"`
	Options       FilterOptions   `json:"options"`
	RecordCount   int             `json:"record_count"`
	FilteredCount int             `json:"filtered_count"`
	NoData        bool            `json:"no_data"`
	Aggregates    *Aggregates     `json:"aggregates,omitempty"`
}
