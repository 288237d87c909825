// Package adapter wraps an embedded SQL engine used to inspect the
// pipeline's flat-file outputs. Nothing is persisted: every database is
// in-memory unless a caller passes an explicit path.
package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Config holds the configuration for opening a database.
type Config struct {
	// Path is the database file. Empty or ":memory:" opens an in-memory database.
	Path string
}

// Column represents a column in a database table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Metadata holds metadata about a database table or view.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows so callers do not depend on the driver package.
type Rows struct {
	*sql.Rows
}

// CSVOptions controls how a CSV file is exposed to SQL.
type CSVOptions struct {
	// AllVarchar disables type sniffing so every column is read as text.
	AllVarchar bool
	// Names overrides the header row's column names, by position.
	Names []string
}

// Adapter is the subset of engine operations the verify and query paths use.
type Adapter interface {
	Connect(ctx context.Context, cfg Config) error
	Close() error
	Exec(ctx context.Context, sql string) error
	Query(ctx context.Context, sql string) (*Rows, error)
	QueryInt(ctx context.Context, sql string) (int64, error)
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)
	LoadCSV(ctx context.Context, tableName, filePath string, opts CSVOptions) error
	CreateCSVView(ctx context.Context, viewName, filePath string, opts CSVOptions) error
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString quotes a SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func readCSVExpr(absPath string, opts CSVOptions) string {
	args := []string{QuoteString(absPath), "header=true"}
	if opts.AllVarchar {
		args = append(args, "all_varchar=true")
	}
	if len(opts.Names) > 0 {
		names := make([]string, len(opts.Names))
		for i, n := range opts.Names {
			names[i] = QuoteString(n)
		}
		args = append(args, fmt.Sprintf("names=[%s]", strings.Join(names, ", ")))
	}
	return fmt.Sprintf("read_csv_auto(%s)", strings.Join(args, ", "))
}
