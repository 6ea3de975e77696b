package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"

	"sqledr/internal/introspect"
	"sqledr/pkg/config"
)

type Extractor interface {

	// Extract reflects the named tables and views of schemaName, or of the
	// connection's default schema when schemaName is empty. Tables that do
	// not exist are left out of the result.
	Extract(ctx context.Context, db *sql.DB, schemaName string, tables []string) (introspect.Schema, error)
}

// Dialect is everything the query engine needs to know about one store:
// how to reflect it and how to spell the few statements that differ.
type Dialect interface {
	Extractor

	// Placeholder is the bind-parameter style of the driver.
	Placeholder() sq.PlaceholderFormat

	// Quote quotes a single identifier.
	Quote(ident string) string

	// Table renders a possibly schema-qualified table name.
	Table(schemaName, table string) string

	// Geometry wraps a geometry column expression so it is selected as WKB.
	Geometry(column string) string

	// Intersects is a predicate true when the geometry column intersects box.
	Intersects(column string, box orb.Bound) sq.Sqlizer

	// Limit caps the number of rows. Call it after Distinct.
	Limit(b sq.SelectBuilder, n uint64) sq.SelectBuilder

	// TimeArg converts a filter instant into a value comparable with the
	// store's time columns.
	TimeArg(t time.Time) any
}

var dialects = map[string]Dialect{}

// Register makes a Dialect available under name.
func Register(name string, d Dialect) {
	dialects[strings.ToLower(name)] = d
}

// listRegistered returns the registered dialect keys (for diagnostics).
func listRegistered() []string {
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the dialect registered for driver, after alias normalization.
func Lookup(driver string) (Dialect, error) {
	d, ok := dialects[config.NormalizeDriver(driver)]
	if !ok {
		return nil, fmt.Errorf("dialect not registered: %q (available: %v)", driver, listRegistered())
	}
	return d, nil
}

// Open connects to the store and verifies it answers within timeoutSec.
func Open(driver, dsn string, timeoutSec int) (*sql.DB, error) {
	driver = config.NormalizeDriver(driver)
	if _, err := Lookup(driver); err != nil {
		return nil, err
	}
	dbConn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Driver: driver, Err: err}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		dbConn.Close()
		return nil, &ConnectionError{Driver: driver, Err: err}
	}
	return dbConn, nil
}

// Reflect extracts the given tables and fails if any of them is missing.
func Reflect(ctx context.Context, dbConn *sql.DB, d Dialect, schemaName string, tables []string) (introspect.Schema, error) {
	s, err := d.Extract(ctx, dbConn, schemaName, tables)
	if err != nil {
		return s, &ConnectionError{Err: fmt.Errorf("reflect %v: %w", tables, err)}
	}
	var missing []string
	for _, name := range tables {
		if _, ok := s.Table(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return s, fmt.Errorf("tables not found in schema %q: %s", schemaName, strings.Join(missing, ", "))
	}
	return s, nil
}

// RegisteredDialects is a helper that allows main to print registered dialects
func RegisteredDialects() []string {
	return listRegistered()
}

// ConnectionError means the store could not be reached or stopped answering.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Driver == "" {
		return fmt.Sprintf("store connection: %v", e.Err)
	}
	return fmt.Sprintf("store connection (%s): %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
