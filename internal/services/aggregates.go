package services

import (
	"slices"

	"sales-dashboard/internal/models"
)

const (
	// TopProductLimit is the number of products on the top products chart.
	TopProductLimit = 5

	// regionScale converts region sums to millions for chart display.
	regionScale = 1e-6

	monthLayout = "2006-01"
)

// Aggregate runs the four aggregation passes over already filtered records.
// It reports false without computing anything when records is empty.
func Aggregate(records []models.Record) (models.Aggregates, bool) {
	if len(records) == 0 {
		return models.Aggregates{}, false
	}

	monthly, undated := MonthlyProfit(records)
	return models.Aggregates{
		Summary:     Summarize(records),
		Regions:     RegionTotals(records),
		TopProducts: TopProducts(records, TopProductLimit),
		Monthly:     monthly,
		Undated:     undated,
	}, true
}

func Summarize(records []models.Record) models.Summary {
	var s models.Summary
	for _, r := range records {
		s.TotalSales += r.Sales
		s.TotalProfit += r.Profit
	}
	s.AvgMargin = models.NewMargin(s.TotalProfit, s.TotalSales)
	return s
}

// RegionTotals sums sales and profit per region, scaled to millions, in the
// order regions first appear.
func RegionTotals(records []models.Record) []models.RegionTotal {
	type sums struct{ sales, profit float64 }

	groups := newOrderedSums[sums]()
	for _, r := range records {
		g := groups.at(r.Region)
		g.sales += r.Sales
		g.profit += r.Profit
	}

	result := make([]models.RegionTotal, 0, groups.len())
	groups.each(func(region string, s sums) {
		result = append(result, models.RegionTotal{
			Region: region,
			Sales:  s.sales * regionScale,
			Profit: s.profit * regionScale,
		})
	})
	return result
}

// TopProducts returns up to limit products ordered by summed sales,
// highest first. Equal sums keep first-seen order.
func TopProducts(records []models.Record, limit int) []models.ProductSales {
	groups := newOrderedSums[float64]()
	for _, r := range records {
		*groups.at(r.ProductName) += r.Sales
	}

	result := make([]models.ProductSales, 0, groups.len())
	groups.each(func(name string, sales float64) {
		result = append(result, models.ProductSales{ProductName: name, Sales: sales})
	})

	slices.SortStableFunc(result, func(a, b models.ProductSales) int {
		switch {
		case a.Sales > b.Sales:
			return -1
		case a.Sales < b.Sales:
			return 1
		default:
			return 0
		}
	})

	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// MonthlyProfit sums profit per UTC "YYYY-MM" month in ascending month order.
// Records without an order date are skipped and counted in undated.
func MonthlyProfit(records []models.Record) (series []models.MonthlyProfit, undated int) {
	groups := newOrderedSums[float64]()
	for _, r := range records {
		if !r.HasDate() {
			undated++
			continue
		}
		*groups.at(r.OrderDate.UTC().Format(monthLayout)) += r.Profit
	}

	series = make([]models.MonthlyProfit, 0, groups.len())
	groups.each(func(month string, profit float64) {
		series = append(series, models.MonthlyProfit{Month: month, Profit: profit})
	})
	slices.SortFunc(series, func(a, b models.MonthlyProfit) int {
		switch {
		case a.Month < b.Month:
			return -1
		case a.Month > b.Month:
			return 1
		default:
			return 0
		}
	})
	return series, undated
}
