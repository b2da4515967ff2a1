// Package sqlrunner executes SQL for the run_sql tool.
package sqlrunner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ResultSet is the outcome of one statement. Queries fill Columns and Rows;
// other statements fill RowsAffected.
type ResultSet struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rows_affected"`
	IsQuery      bool             `json:"is_query"`
}

// Runner executes a single SQL statement.
type Runner interface {
	RunSQL(ctx context.Context, query string) (*ResultSet, error)
}

// QueryType returns the upper-cased first keyword of query.
func QueryType(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// IsQuery reports whether query returns rows.
func IsQuery(query string) bool {
	switch QueryType(query) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN":
		return true
	}
	return false
}

// SQLiteRunner runs statements against a SQLite database.
type SQLiteRunner struct {
	db *sql.DB
}

// OpenSQLite opens the database at path (":memory:" or a "file:" URI work
// too).
func OpenSQLite(path string) (*SQLiteRunner, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLiteRunner{db: db}, nil
}

// NewSQLiteRunner wraps an open database.
func NewSQLiteRunner(db *sql.DB) *SQLiteRunner {
	return &SQLiteRunner{db: db}
}

// DB exposes the underlying handle.
func (r *SQLiteRunner) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRunner) RunSQL(ctx context.Context, query string) (*ResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if !IsQuery(query) {
		res, err := r.db.ExecContext(ctx, query)
		if err != nil {
			return nil, err
		}
		n, _ := res.RowsAffected()
		return &ResultSet{RowsAffected: n}, nil
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: cols, Rows: []map[string]any{}, IsQuery: true}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, rows.Err()
}

func (r *SQLiteRunner) Close() error {
	return r.db.Close()
}
