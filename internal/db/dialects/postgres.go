package dialects

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/paulmach/orb"

	"sqledr/internal/db"
	"sqledr/internal/introspect"
)

// pgDialect targets PostgreSQL with PostGIS.
type pgDialect struct{ ansi }

func (pgDialect) Placeholder() sq.PlaceholderFormat { return sq.Dollar }

func (pgDialect) Geometry(column string) string { return "ST_AsBinary(" + column + ")" }

// Intersects builds the envelope in the column's own SRID so mixed-SRID
// errors cannot occur.
func (pgDialect) Intersects(column string, box orb.Bound) sq.Sqlizer {
	return sq.Expr("ST_Intersects("+column+", ST_MakeEnvelope(?, ?, ?, ?, ST_SRID("+column+")))",
		box.Min.X(), box.Min.Y(), box.Max.X(), box.Max.Y())
}

// Extract uses information_schema + pg_catalog queries.
func (pgDialect) Extract(ctx context.Context, dbConn *sql.DB, schemaName string, tables []string) (introspect.Schema, error) {
	var s introspect.Schema

	tr, err := dbConn.QueryContext(ctx, `
        SELECT table_schema, table_name, table_type = 'VIEW'
        FROM information_schema.tables
        WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
          AND table_name = ANY($2)
        ORDER BY table_name`, schemaName, pq.Array(tables))
	if err != nil {
		return s, fmt.Errorf("query tables: %w", err)
	}
	if s.Tables, err = scanTables(tr); err != nil {
		return s, err
	}

	for i := range s.Tables {
		t := &s.Tables[i]
		cr, err := dbConn.QueryContext(ctx, `
            SELECT column_name,
                   CASE WHEN data_type = 'USER-DEFINED' THEN udt_name ELSE data_type END,
                   is_nullable = 'YES'
            FROM information_schema.columns
            WHERE table_schema = $1 AND table_name = $2
            ORDER BY ordinal_position`, t.Schema, t.Name)
		if err != nil {
			return s, fmt.Errorf("query columns for %s.%s: %w", t.Schema, t.Name, err)
		}
		if err := scanColumns(t, cr); err != nil {
			return s, err
		}

		pkr, err := dbConn.QueryContext(ctx, `
            SELECT a.attname
            FROM pg_index i
            JOIN pg_class c ON i.indrelid = c.oid
            JOIN pg_namespace ns ON c.relnamespace = ns.oid
            JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
            WHERE ns.nspname = $1 AND c.relname = $2 AND i.indisprimary`, t.Schema, t.Name)
		markPrimaryKeys(t, pkr, err)
	}
	return s, nil
}

func init() {
	db.Register("postgres", pgDialect{})
	db.Register("postgresql", pgDialect{})
}
