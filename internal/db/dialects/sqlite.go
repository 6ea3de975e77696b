package dialects

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"modernc.org/sqlite"

	"sqledr/internal/db"
	"sqledr/internal/introspect"
	"sqledr/internal/logger"
)

// sqliteDialect stores geometries as WKB blobs and times as ISO 8601 text.
// SQLite has no spatial predicates, so bbox filtering goes through the
// edr_intersects function registered below, an envelope intersection test.
type sqliteDialect struct{ ansi }

func (sqliteDialect) Geometry(column string) string { return column }

func (sqliteDialect) Intersects(column string, box orb.Bound) sq.Sqlizer {
	return sq.Expr("edr_intersects("+column+", ?, ?, ?, ?) = 1",
		box.Min.X(), box.Min.Y(), box.Max.X(), box.Max.Y())
}

// TimeArg renders instants the way they are stored so that text comparison
// orders them: a date for midnight UTC, RFC 3339 otherwise.
func (sqliteDialect) TimeArg(t time.Time) any {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

// Extract reads sqlite_master and the table_info pragma.
func (d sqliteDialect) Extract(ctx context.Context, dbConn *sql.DB, schemaName string, tables []string) (introspect.Schema, error) {
	var s introspect.Schema
	if len(tables) == 0 {
		return s, nil
	}
	if schemaName == "" {
		schemaName = "main"
	}

	args := append([]any{schemaName}, anySlice(tables)...)
	tr, err := dbConn.QueryContext(ctx, `
	    SELECT ?, name, type = 'view'
	    FROM `+d.Quote(schemaName)+`.sqlite_master
	    WHERE type IN ('table', 'view')
	      AND name IN (`+placeholders(len(tables), func(int) string { return "?" })+`)
	    ORDER BY name`, args...)
	if err != nil {
		return s, fmt.Errorf("query tables: %w", err)
	}
	if s.Tables, err = scanTables(tr); err != nil {
		return s, err
	}

	for i := range s.Tables {
		t := &s.Tables[i]
		pr, err := dbConn.QueryContext(ctx, `
		    SELECT name, type, "notnull", pk
		    FROM pragma_table_info(?, ?)
		    ORDER BY cid`, t.Name, schemaName)
		if err != nil {
			return s, fmt.Errorf("query columns for %s.%s: %w", t.Schema, t.Name, err)
		}
		for pr.Next() {
			var name, ctype string
			var notnull, pk int
			if err := pr.Scan(&name, &ctype, &notnull, &pk); err != nil {
				pr.Close()
				return s, fmt.Errorf("scan column for %s.%s: %w", t.Schema, t.Name, err)
			}
			t.Columns = append(t.Columns, introspect.Column{
				Name:     name,
				Type:     ctype,
				Nullable: notnull == 0,
				PK:       pk != 0,
			})
		}
		pr.Close()
	}

	return s, nil
}

// intersectsFunc implements edr_intersects(geom, minx, miny, maxx, maxy):
// 1 when the WKB geometry's envelope touches the box, 0 otherwise or for NULL.
func intersectsFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	blob, ok := args[0].([]byte)
	if !ok || len(blob) == 0 {
		return int64(0), nil
	}
	g, err := wkb.Unmarshal(blob)
	if err != nil {
		return nil, fmt.Errorf("edr_intersects: %w", err)
	}
	var v [4]float64
	for i, a := range args[1:] {
		switch n := a.(type) {
		case float64:
			v[i] = n
		case int64:
			v[i] = float64(n)
		default:
			return nil, fmt.Errorf("edr_intersects: argument %d is %T, not a number", i+2, a)
		}
	}
	box := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if g.Bound().Intersects(box) {
		return int64(1), nil
	}
	return int64(0), nil
}

func init() {
	db.Register("sqlite3", sqliteDialect{})
	db.Register("sqlite", sqliteDialect{})
	if err := sqlite.RegisterDeterministicScalarFunction("edr_intersects", 5, intersectsFunc); err != nil {
		logger.Error("register edr_intersects: %v", err)
	}
}
