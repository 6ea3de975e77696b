package dialects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/paulmach/orb"

	"sqledr/internal/db"
	"sqledr/internal/introspect"
)

// mssqlDialect targets Microsoft SQL Server geometry columns.
type mssqlDialect struct{ ansi }

func (mssqlDialect) Placeholder() sq.PlaceholderFormat { return sq.AtP }

func (mssqlDialect) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (d mssqlDialect) Table(schemaName, table string) string {
	if schemaName == "" {
		return d.Quote(table)
	}
	return d.Quote(schemaName) + "." + d.Quote(table)
}

// Limit uses TOP, which unlike OFFSET/FETCH needs no ORDER BY.
func (mssqlDialect) Limit(b sq.SelectBuilder, n uint64) sq.SelectBuilder {
	return b.Options(fmt.Sprintf("TOP (%d)", n))
}

func (mssqlDialect) Geometry(column string) string { return column + ".STAsBinary()" }

func (mssqlDialect) Intersects(column string, box orb.Bound) sq.Sqlizer {
	return sq.Expr(column+".STIntersects(geometry::STGeomFromText(?, "+column+".STSrid)) = 1", boxWKT(box))
}

// Extract reads INFORMATION_SCHEMA.
func (mssqlDialect) Extract(ctx context.Context, dbConn *sql.DB, schemaName string, tables []string) (introspect.Schema, error) {
	var s introspect.Schema
	if len(tables) == 0 {
		return s, nil
	}

	args := []any{sql.Named("schema", schemaName)}
	for i, name := range tables {
		args = append(args, sql.Named(fmt.Sprintf("t%d", i), name))
	}
	tr, err := dbConn.QueryContext(ctx, `
        SELECT TABLE_SCHEMA, TABLE_NAME, CASE WHEN TABLE_TYPE = 'VIEW' THEN 1 ELSE 0 END
        FROM INFORMATION_SCHEMA.TABLES
        WHERE TABLE_SCHEMA = COALESCE(NULLIF(@schema, ''), SCHEMA_NAME())
          AND TABLE_NAME IN (`+placeholders(len(tables), func(i int) string { return fmt.Sprintf("@t%d", i) })+`)
        ORDER BY TABLE_NAME`, args...)
	if err != nil {
		return s, fmt.Errorf("query tables: %w", err)
	}
	if s.Tables, err = scanTables(tr); err != nil {
		return s, err
	}

	// columns and PKs for each table
	for i := range s.Tables {
		t := &s.Tables[i]

		cr, err := dbConn.QueryContext(ctx, `
            SELECT COLUMN_NAME, DATA_TYPE, CASE WHEN IS_NULLABLE='YES' THEN 1 ELSE 0 END
            FROM INFORMATION_SCHEMA.COLUMNS
            WHERE TABLE_SCHEMA = @schema AND TABLE_NAME = @table
            ORDER BY ORDINAL_POSITION`, sql.Named("schema", t.Schema), sql.Named("table", t.Name))
		if err != nil {
			return s, fmt.Errorf("query columns for %s.%s: %w", t.Schema, t.Name, err)
		}
		if err := scanColumns(t, cr); err != nil {
			return s, err
		}

		pkr, err := dbConn.QueryContext(ctx, `
            SELECT k.COLUMN_NAME
            FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS t
            JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k ON t.CONSTRAINT_NAME = k.CONSTRAINT_NAME AND t.TABLE_SCHEMA = k.TABLE_SCHEMA
            WHERE t.CONSTRAINT_TYPE = 'PRIMARY KEY' AND k.TABLE_SCHEMA = @schema AND k.TABLE_NAME = @table`, sql.Named("schema", t.Schema), sql.Named("table", t.Name))
		markPrimaryKeys(t, pkr, err)
	}

	return s, nil
}

func init() {
	db.Register("sqlserver", mssqlDialect{})
	db.Register("mssql", mssqlDialect{})
}
