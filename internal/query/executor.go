package query

import (
	"context"
	"database/sql"
	"fmt"

	"reportd/internal/config"

	// Raw drivers for the dedicated reporting connection.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"gorm.io/gorm"
)

// Executor runs validated report queries and returns rows as maps.
type Executor struct {
	db     *sql.DB
	driver string
}

// NewExecutor builds an executor for report queries. When database.report_dsn
// is configured the executor opens its own connection (typically a read
// replica); otherwise it shares the service's gorm connection pool.
func NewExecutor(cfg config.Config, db *gorm.DB) (*Executor, error) {
	if cfg.DB.ReportDSN != "" {
		driverName := cfg.DB.Driver
		if driverName == "sqlite" {
			driverName = "sqlite3"
		}
		raw, err := sql.Open(driverName, cfg.DB.ReportDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open reporting connection: %w", err)
		}
		return &Executor{db: raw, driver: cfg.DB.Driver}, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	return &Executor{db: sqlDB, driver: cfg.DB.Driver}, nil
}

// NewExecutorFromDB wraps an existing connection, used by tests and the CLI.
func NewExecutorFromDB(db *sql.DB, driver string) *Executor {
	return &Executor{db: db, driver: driver}
}

// Execute validates, binds and runs a query, returning rows as a slice of maps.
func (e *Executor) Execute(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if err := Validate(query); err != nil {
		return nil, err
	}

	stmt, args, err := Bind(query, params, e.driver)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range ptrs {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rowMap := make(map[string]any)
		for i, col := range cols {
			rowMap[col] = vals[i]
		}
		results = append(results, rowMap)
	}
	return results, rows.Err()
}
