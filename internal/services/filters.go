package services

import (
	"time"

	"sales-dashboard/internal/models"
)

// ApplyFilters returns the records matching every constraint in sel.
// Region and category match exactly; the year constraint keeps orders
// placed between January 1 and December 31 of that year inclusive.
// Input order is preserved. The input slice is never modified.
func ApplyFilters(records []models.Record, sel models.FilterSelection) []models.Record {
	if sel.IsEmpty() {
		return records
	}

	var start, end time.Time
	if sel.Year != models.AllYears {
		start = time.Date(sel.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = time.Date(sel.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}

	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if sel.Region != "" && r.Region != sel.Region {
			continue
		}
		if sel.Category != "" && r.Category != sel.Category {
			continue
		}
		if sel.Year != models.AllYears {
			if !r.HasDate() {
				continue
			}
			day := truncateDay(r.OrderDate)
			if day.Before(start) || day.After(end) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// Options lists the distinct regions and categories of the full dataset in
// first-seen order. Callers must pass the unfiltered records so that
// narrowing one filter never hides choices of another.
func Options(records []models.Record, years []int) models.FilterOptions {
	regions := newOrderedSums[struct{}]()
	categories := newOrderedSums[struct{}]()
	for _, r := range records {
		regions.at(r.Region)
		categories.at(r.Category)
	}

	opts := models.FilterOptions{
		Regions:    make([]string, 0, regions.len()),
		Categories: make([]string, 0, categories.len()),
		Years:      append(make([]int, 0, len(years)), years...),
	}
	regions.each(func(k string, _ struct{}) { opts.Regions = append(opts.Regions, k) })
	categories.each(func(k string, _ struct{}) { opts.Categories = append(opts.Categories, k) })
	return opts
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
