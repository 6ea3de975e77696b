// Package dialects registers one db.Dialect per supported store. Importing
// it for side effects is enough to make the dialects available.
package dialects

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"sqledr/internal/introspect"
	"sqledr/internal/logger"
)

// ansi covers stores that quote with double quotes and cap rows with LIMIT.
type ansi struct{}

func (ansi) Placeholder() sq.PlaceholderFormat { return sq.Question }

func (ansi) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (a ansi) Table(schemaName, table string) string {
	if schemaName == "" {
		return a.Quote(table)
	}
	return a.Quote(schemaName) + "." + a.Quote(table)
}

func (ansi) Limit(b sq.SelectBuilder, n uint64) sq.SelectBuilder { return b.Limit(n) }

func (ansi) TimeArg(t time.Time) any { return t }

// placeholders renders n bind markers produced by mark(i), comma separated.
func placeholders(n int, mark func(i int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = mark(i)
	}
	return strings.Join(parts, ", ")
}

// markPrimaryKeys flags the columns of t named by rows. Failures are logged
// and otherwise ignored, the key is informational only.
func markPrimaryKeys(t *introspect.Table, rows *sql.Rows, err error) {
	if err != nil {
		logger.Error("query primary key for %s: %v", t.Name, err)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var pkcol string
		if err := rows.Scan(&pkcol); err != nil {
			logger.Error("scan primary key: %v", err)
			continue
		}
		for j := range t.Columns {
			if t.Columns[j].Name == pkcol {
				t.Columns[j].PK = true
			}
		}
	}
}

// scanTables reads (schema, name, is_view) rows.
func scanTables(rows *sql.Rows) ([]introspect.Table, error) {
	defer rows.Close()
	var tables []introspect.Table
	for rows.Next() {
		var tab introspect.Table
		if err := rows.Scan(&tab.Schema, &tab.Name, &tab.View); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, tab)
	}
	return tables, rows.Err()
}

// scanColumns reads (name, type, nullable) rows into t.
func scanColumns(t *introspect.Table, rows *sql.Rows) error {
	defer rows.Close()
	for rows.Next() {
		var col introspect.Column
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable); err != nil {
			return fmt.Errorf("scan column for %s.%s: %w", t.Schema, t.Name, err)
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func boxWKT(box orb.Bound) string {
	return wkt.MarshalString(box.ToPolygon())
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
