package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqledr/internal/introspect"
)

var testdialect string = "testdialect"

type testDialect struct {
	tables []string
	err    error
	calls  int
}

func (d *testDialect) Extract(ctx context.Context, dbConn *sql.DB, schemaName string, tables []string) (introspect.Schema, error) {
	d.calls++
	var s introspect.Schema
	if d.err != nil {
		return s, d.err
	}
	for _, name := range d.tables {
		s.Tables = append(s.Tables, introspect.Table{Schema: schemaName, Name: name})
	}
	return s, nil
}

func (d *testDialect) Placeholder() sq.PlaceholderFormat                   { return sq.Question }
func (d *testDialect) Quote(ident string) string                           { return `"` + ident + `"` }
func (d *testDialect) Table(schemaName, table string) string               { return d.Quote(table) }
func (d *testDialect) Geometry(column string) string                       { return column }
func (d *testDialect) Intersects(string, orb.Bound) sq.Sqlizer             { return sq.Expr("1=1") }
func (d *testDialect) Limit(b sq.SelectBuilder, n uint64) sq.SelectBuilder { return b.Limit(n) }
func (d *testDialect) TimeArg(t time.Time) any                             { return t }

func TestRegister(t *testing.T) {
	// tests both Register and RegisteredDialects because they take the same setup

	Register(testdialect, &testDialect{})

	if _, ok := dialects[testdialect]; !ok {
		t.Errorf("\ndialect %v not registered correctly in %v", testdialect, dialects)
	}

	rd := RegisteredDialects()
	assert.Contains(t, rd, testdialect)

	d, err := Lookup("TestDialect")
	require.NoError(t, err)
	assert.NotNil(t, d)

	_, err = Lookup("nosuchdialect")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {

	var tests = []struct {
		name          string
		dialect       string
		dsn           string
		registerFirst bool
		errIsNil      bool
	}{
		{"unregistered dialect", "unregistered", "", false, false},
		{"sqlite in memory", "sqlite3", ":memory:", true, true},
	}

	for _, tt := range tests {
		// Use t.Run to run each case as a subtest with a descriptive name
		t.Run(tt.name, func(t *testing.T) {
			if tt.registerFirst {
				Register("sqlite", &testDialect{})
			}

			conn, err := Open(tt.dialect, tt.dsn, 10)
			if conn != nil {
				defer conn.Close()
			}

			if (err == nil) != tt.errIsNil {
				if tt.errIsNil {
					t.Errorf("\ngot unexpected error: \"%v\"", err)
				} else {
					t.Errorf("\nexpected an error, did not receive one")
				}
			}
		})
	}
}

func TestReflect(t *testing.T) {
	ctx := context.Background()

	d := &testDialect{tables: []string{"daily"}}
	s, err := Reflect(ctx, nil, d, "capture", []string{"daily"})
	require.NoError(t, err)
	assert.Len(t, s.Tables, 1)

	_, err = Reflect(ctx, nil, d, "capture", []string{"daily", "meta"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meta")

	failing := &testDialect{err: errors.New("connection refused")}
	_, err = Reflect(ctx, nil, failing, "", []string{"daily"})
	var connErr *ConnectionError
	assert.ErrorAs(t, err, &connErr)
}

func TestSchemaCache(t *testing.T) {
	ctx := context.Background()
	cache := NewSchemaCache()
	d := &testDialect{tables: []string{"daily", "meta"}}

	key := NewSchemaKey("sqlite::memory:", "", []string{"meta", "daily"})
	assert.Equal(t, NewSchemaKey("sqlite::memory:", "", []string{"daily", "meta"}), key)

	for i := 0; i < 3; i++ {
		s, err := cache.Load(ctx, key, nil, d, []string{"daily", "meta"})
		require.NoError(t, err)
		assert.Len(t, s.Tables, 2)
	}
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, 1, cache.Len())

	cache.Invalidate("other-store")
	assert.Equal(t, 1, cache.Len())

	cache.Invalidate("sqlite::memory:")
	assert.Equal(t, 0, cache.Len())

	_, err := cache.Load(ctx, key, nil, d, []string{"daily", "meta"})
	require.NoError(t, err)
	assert.Equal(t, 2, d.calls)
}
