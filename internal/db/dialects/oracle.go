//go:build oracle
// +build oracle

package dialects

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/godror/godror"
	"github.com/paulmach/orb"

	"sqledr/internal/db"
	"sqledr/internal/introspect"
)

// oracleDialect targets Oracle Spatial (SDO_GEOMETRY). Identifiers are
// quoted, so configuration must use the stored (usually upper) case.
type oracleDialect struct{ ansi }

func (oracleDialect) Placeholder() sq.PlaceholderFormat { return sq.Colon }

func (oracleDialect) Limit(b sq.SelectBuilder, n uint64) sq.SelectBuilder {
	return b.Suffix(fmt.Sprintf("FETCH FIRST %d ROWS ONLY", n))
}

func (oracleDialect) Geometry(column string) string {
	return "SDO_UTIL.TO_WKBGEOMETRY(" + column + ")"
}

func (oracleDialect) Intersects(column string, box orb.Bound) sq.Sqlizer {
	return sq.Expr("SDO_ANYINTERACT("+column+", SDO_GEOMETRY(?, "+column+".SDO_SRID)) = 'TRUE'", boxWKT(box))
}

// Extract reads the ALL_* dictionary views.
func (oracleDialect) Extract(ctx context.Context, dbConn *sql.DB, schemaName string, tables []string) (introspect.Schema, error) {
	var s introspect.Schema
	if len(tables) == 0 {
		return s, nil
	}

	args := append([]any{schemaName}, anySlice(tables)...)
	tr, err := dbConn.QueryContext(ctx, `
	    SELECT owner, name, is_view FROM (
	        SELECT owner, table_name AS name, 'false' AS is_view FROM all_tables
	        UNION ALL
	        SELECT owner, view_name AS name, 'true' AS is_view FROM all_views
	    )
	    WHERE owner = NVL(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))
	      AND name IN (`+placeholders(len(tables), func(i int) string { return fmt.Sprintf(":%d", i+2) })+`)
	    ORDER BY name`, args...)
	if err != nil {
		return s, fmt.Errorf("query tables: %w", err)
	}
	if s.Tables, err = scanTables(tr); err != nil {
		return s, err
	}

	for i := range s.Tables {
		t := &s.Tables[i]
		cr, err := dbConn.QueryContext(ctx, `
            SELECT column_name, data_type, CASE WHEN nullable = 'Y' THEN 'true' ELSE 'false' END
            FROM all_tab_columns
            WHERE owner = :1 AND table_name = :2
            ORDER BY column_id`, t.Schema, t.Name)
		if err != nil {
			return s, fmt.Errorf("query columns for %s.%s: %w", t.Schema, t.Name, err)
		}
		if err := scanColumns(t, cr); err != nil {
			return s, err
		}

		pkr, err := dbConn.QueryContext(ctx, `
            SELECT acc.column_name
            FROM all_cons_columns acc
            JOIN all_constraints ac ON acc.owner = ac.owner AND acc.constraint_name = ac.constraint_name
            WHERE ac.constraint_type = 'P' AND acc.owner = :1 AND acc.table_name = :2`, t.Schema, t.Name)
		markPrimaryKeys(t, pkr, err)
	}

	return s, nil
}

func init() {
	db.Register("godror", oracleDialect{})
	db.Register("oracle", oracleDialect{})
}
