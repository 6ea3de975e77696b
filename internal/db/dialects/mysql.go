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

// myDialect targets MySQL and MariaDB spatial extensions. Geographic SRSs
// in MySQL 8 use latitude-longitude axis order; store data in SRID 0 or a
// projected SRS to keep bbox axes as x, y.
type myDialect struct{ ansi }

func (myDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (d myDialect) Table(schemaName, table string) string {
	if schemaName == "" {
		return d.Quote(table)
	}
	return d.Quote(schemaName) + "." + d.Quote(table)
}

func (myDialect) Geometry(column string) string { return "ST_AsBinary(" + column + ")" }

func (myDialect) Intersects(column string, box orb.Bound) sq.Sqlizer {
	return sq.Expr("ST_Intersects("+column+", ST_GeomFromText(?, ST_SRID("+column+")))", boxWKT(box))
}

// Extract reads information_schema.
func (myDialect) Extract(ctx context.Context, dbConn *sql.DB, schemaName string, tables []string) (introspect.Schema, error) {
	var s introspect.Schema
	if len(tables) == 0 {
		return s, nil
	}

	args := append([]any{schemaName}, anySlice(tables)...)
	tr, err := dbConn.QueryContext(ctx, `
        SELECT table_schema, table_name, table_type = 'VIEW'
        FROM information_schema.tables
        WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
          AND table_name IN (`+placeholders(len(tables), func(int) string { return "?" })+`)
        ORDER BY table_name`, args...)
	if err != nil {
		return s, fmt.Errorf("query tables: %w", err)
	}
	if s.Tables, err = scanTables(tr); err != nil {
		return s, err
	}

	for i := range s.Tables {
		t := &s.Tables[i]
		cr, err := dbConn.QueryContext(ctx, `
            SELECT column_name, data_type, is_nullable = 'YES'
            FROM information_schema.columns
            WHERE table_schema = ? AND table_name = ?
            ORDER BY ordinal_position`, t.Schema, t.Name)
		if err != nil {
			return s, fmt.Errorf("query columns for %s.%s: %w", t.Schema, t.Name, err)
		}
		if err := scanColumns(t, cr); err != nil {
			return s, err
		}

		pkr, err := dbConn.QueryContext(ctx, `
            SELECT k.COLUMN_NAME
            FROM information_schema.key_column_usage k
            JOIN information_schema.table_constraints tc ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema AND k.table_name = tc.table_name
            WHERE tc.constraint_type = 'PRIMARY KEY' AND k.table_schema = ? AND k.table_name = ?`, t.Schema, t.Name)
		markPrimaryKeys(t, pkr, err)
	}
	return s, nil
}

func init() {
	db.Register("mysql", myDialect{})
	db.Register("mariadb", myDialect{})
}
