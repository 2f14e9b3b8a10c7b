package loader

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"

	"sales-dashboard/internal/models"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLite reads records from a table with the columns region,
// product_category, product_name, sales, profit and order_date.
// The database is opened for each load and closed afterwards.
type SQLite struct {
	path  string
	table string
}

func NewSQLite(path, table string) (*SQLite, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLite{path: path, table: table}, nil
}

func (s *SQLite) Name() string {
	return "sqlite:" + s.path + "#" + s.table
}

func (s *SQLite) Load(ctx context.Context) ([]models.Record, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf(`SELECT region, product_category, product_name, sales, profit, order_date
		FROM %s ORDER BY rowid`, s.table)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var (
			r         models.Record
			orderDate sql.NullString
		)
		if err := rows.Scan(&r.Region, &r.Category, &r.ProductName, &r.Sales, &r.Profit, &orderDate); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.OrderDate = models.ParseOrderDate(orderDate.String)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return records, nil
}
