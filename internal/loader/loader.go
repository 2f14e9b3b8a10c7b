// Package loader fetches the sales dataset from files, URLs and databases.
// Loaders do not validate records: unparseable order dates are kept with a
// zero date and surface downstream as undated records.
package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

// New returns the source selected by cfg.Source.
func New(cfg config.DataConfig, logger *slog.Logger) (services.Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Source {
	case config.SourceJSON:
		return NewJSONFile(cfg.Path), nil
	case config.SourceHTTP:
		return NewHTTP(cfg.URL, nil), nil
	case config.SourceCSV:
		return NewCSV(cfg.Path, logger), nil
	case config.SourceSQLite:
		src, err := NewSQLite(cfg.Path, cfg.Table)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Source)
	}
}

// decodeRecords reads a JSON array of records.
func decodeRecords(r io.Reader) ([]models.Record, error) {
	var records []models.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, nil
}
