package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

// columnNames maps each record field to the header spellings accepted for it.
var columnNames = map[string][]string{
	"region":   {"region"},
	"category": {"product category", "category"},
	"product":  {"product name", "product"},
	"sales":    {"sales"},
	"profit":   {"profit"},
	"date":     {"order date", "date"},
}

// CSV reads records from a comma separated file with a header row.
// Unparseable sales or profit values read as zero; the row is kept.
type CSV struct {
	path   string
	logger *slog.Logger
}

func NewCSV(path string, logger *slog.Logger) *CSV {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSV{path: path, logger: logger}
}

func (s *CSV) Name() string {
	return "csv:" + s.path
}

func (s *CSV) Load(ctx context.Context) ([]models.Record, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return s.read(ctx, file)
}

func (s *CSV) read(ctx context.Context, r io.Reader) ([]models.Record, error) {
	start := time.Now()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	// Batches are parsed concurrently into their own slots so the output
	// keeps file order.
	batches := make([][]models.Record, (len(rows)+batchSize-1)/batchSize)
	var malformed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i := range batches {
		lo := i * batchSize
		hi := min(lo+batchSize, len(rows))
		g.Go(func() error {
			out := make([]models.Record, 0, hi-lo)
			for _, row := range rows[lo:hi] {
				if err := gctx.Err(); err != nil {
					return err
				}
				rec, ok := cols.parse(row)
				if !ok {
					malformed.Add(1)
				}
				out = append(out, rec)
			}
			batches[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(rows))
	for _, b := range batches {
		records = append(records, b...)
	}

	if n := malformed.Load(); n > 0 {
		s.logger.Warn("csv rows with unparseable amounts read as zero", "file", s.path, "rows", n)
	}
	s.logger.Debug("csv parsed",
		"file", s.path,
		"records", len(records),
		"duration", time.Since(start),
	)
	return records, nil
}

type columnIndex map[string]int

func mapColumns(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	cols := make(columnIndex, len(columnNames))
	for field, names := range columnNames {
		for _, name := range names {
			if i, ok := positions[name]; ok {
				cols[field] = i
				break
			}
		}
		if _, ok := cols[field]; !ok {
			return nil, fmt.Errorf("missing column %q", names[0])
		}
	}
	return cols, nil
}

func (c columnIndex) field(row []string, name string) string {
	i := c[name]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parse reports false when an amount could not be read.
func (c columnIndex) parse(row []string) (models.Record, bool) {
	sales, salesErr := parseAmount(c.field(row, "sales"))
	profit, profitErr := parseAmount(c.field(row, "profit"))

	return models.Record{
		Region:      c.field(row, "region"),
		Category:    c.field(row, "category"),
		ProductName: c.field(row, "product"),
		Sales:       sales,
		Profit:      profit,
		OrderDate:   models.ParseOrderDate(c.field(row, "date")),
	}, salesErr == nil && profitErr == nil
}

// parseAmount accepts plain numbers with an optional leading $ and
// thousands separators.
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
