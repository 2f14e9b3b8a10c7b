package models

import (
	"encoding/json"
	"strings"
	"time"
)

// dateLayouts are tried in order when decoding an order date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006",
}

type Record struct {
	Region      string
	Category    string
	ProductName string
	Sales       float64
	Profit      float64
	OrderDate   time.Time
}

type recordJSON struct {
	Region      string  `json:"Region"`
	Category    string  `json:"Product Category"`
	ProductName string  `json:"Product Name"`
	Sales       float64 `json:"Sales"`
	Profit      float64 `json:"Profit"`
	OrderDate   string  `json:"Order Date"`
}

// HasDate reports whether the order date was parsed.
func (r Record) HasDate() bool {
	return !r.OrderDate.IsZero()
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{
		Region:      raw.Region,
		Category:    raw.Category,
		ProductName: raw.ProductName,
		Sales:       raw.Sales,
		Profit:      raw.Profit,
		OrderDate:   ParseOrderDate(raw.OrderDate),
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	raw := recordJSON{
		Region:      r.Region,
		Category:    r.Category,
		ProductName: r.ProductName,
		Sales:       r.Sales,
		Profit:      r.Profit,
	}
	if r.HasDate() {
		raw.OrderDate = r.OrderDate.UTC().Format("2006-01-02")
	}
	return json.Marshal(raw)
}

// ParseOrderDate returns the zero time when value matches none of the
// accepted layouts. Dates are normalised to UTC.
func ParseOrderDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
