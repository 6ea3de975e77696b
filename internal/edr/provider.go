// Package edr answers OGC API EDR locations queries against one
// observation table and the external tables joined onto it.
package edr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/singleflight"

	"sqledr/internal/db"
	"sqledr/internal/introspect"
	"sqledr/internal/logger"
	"sqledr/internal/schema"
	"sqledr/pkg/config"
)

// DefaultLimit caps locations and time steps when the request sets no limit.
const DefaultLimit = 100

type options struct {
	cache *db.SchemaCache
	store string
}

// Option configures New.
type Option func(*options)

// WithSchemaCache reflects through cache. store names the connection so
// providers over different stores never share entries.
func WithSchemaCache(cache *db.SchemaCache, store string) Option {
	return func(o *options) {
		o.cache = cache
		o.store = store
	}
}

// Provider is the EDR provider for one collection. It is safe for
// concurrent use.
type Provider struct {
	db      *sql.DB
	dialect db.Dialect
	cfg     config.ProviderConfig
	graph   *schema.Graph
	sb      sq.StatementBuilderType

	timeCol   schema.ColumnRef
	geomCol   schema.ColumnRef
	idCol     schema.ColumnRef
	locCol    schema.ColumnRef
	resultCol schema.ColumnRef
	pidCol    schema.ColumnRef
	pnameCol  schema.ColumnRef
	punitCol  schema.ColumnRef

	fieldsMu    sync.Mutex
	fields      map[string]FieldMeta
	fieldsGroup singleflight.Group
}

// New reflects the configured tables, builds the join graph and resolves
// every role. Any mismatch between cfg and the store is a
// *ConfigurationError; an unreachable store is a *ConnectionError.
func New(ctx context.Context, store *sql.DB, d db.Dialect, cfg config.ProviderConfig, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Table: cfg.Table, Err: err}
	}

	tables := []string{cfg.Table}
	for _, ext := range cfg.ExternalTables {
		tables = append(tables, ext.Name)
	}
	logger.Debug("provider %s: reflecting %v", cfg.Table, tables)

	var catalog introspect.Schema
	var err error
	if o.cache != nil {
		catalog, err = o.cache.Load(ctx, db.NewSchemaKey(o.store, cfg.Schema, tables), store, d, tables)
	} else {
		catalog, err = db.Reflect(ctx, store, d, cfg.Schema, tables)
	}
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, &ConfigurationError{Table: cfg.Table, Err: err}
	}

	graph, err := schema.BuildJoinGraph(catalog, cfg.Table, cfg.ExternalTables)
	if err != nil {
		return nil, &ConfigurationError{Table: cfg.Table, Err: err}
	}

	p := &Provider{
		db:      store,
		dialect: d,
		cfg:     cfg,
		graph:   graph,
		sb:      sq.StatementBuilder.PlaceholderFormat(d.Placeholder()),
	}

	roles := []struct {
		name     string
		path     string
		required bool
		ref      *schema.ColumnRef
	}{
		{"time_field", cfg.TimeField, true, &p.timeCol},
		{"location_field", cfg.EDRFields.LocationField, true, &p.locCol},
		{"result_field", cfg.EDRFields.ResultField, true, &p.resultCol},
		{"geom_field", cfg.GeomField, false, &p.geomCol},
		{"id_field", cfg.IDField, false, &p.idCol},
		{"parameter_id", cfg.EDRFields.ParameterID, false, &p.pidCol},
		{"parameter_name", cfg.EDRFields.ParameterName, false, &p.pnameCol},
		{"parameter_unit", cfg.EDRFields.ParameterUnit, false, &p.punitCol},
	}
	for _, r := range roles {
		if r.path == "" {
			if r.required {
				return nil, &ConfigurationError{Table: cfg.Table, Role: r.name, Err: fmt.Errorf("not set")}
			}
			continue
		}
		ref, err := graph.Resolve(r.path)
		if err != nil {
			return nil, &ConfigurationError{Table: cfg.Table, Role: r.name, Err: err}
		}
		*r.ref = ref
		logger.Debug("provider %s: %s -> %s", cfg.Table, r.name, ref)
	}
	return p, nil
}

// Locations answers a locations request: a FeatureCollection of matching
// locations, or a Coverage when q names a single location.
func (p *Provider) Locations(ctx context.Context, q Query) (any, error) {
	if q.LocationID != "" {
		return p.Coverage(ctx, q)
	}
	return p.FeatureCollection(ctx, q)
}

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// session acquires the connection a request runs on. Callers must close it.
func (p *Provider) session(ctx context.Context) (*sql.Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return conn, nil
}

func (p *Provider) col(ref schema.ColumnRef) string { return ref.SQL(p.dialect) }

// selectFrom starts a query over the primary table and every join.
func (p *Provider) selectFrom(columns ...string) sq.SelectBuilder {
	return p.graph.From(p.sb.Select(columns...), p.dialect)
}

func (p *Provider) limit(n int) uint64 {
	if n <= 0 {
		return DefaultLimit
	}
	return uint64(n)
}

func (p *Provider) query(ctx context.Context, q querier, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	logger.Debug("%s %v", query, args)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("query %s: %v", p.cfg.Table, err)
		return nil, fmt.Errorf("query %s: %w", p.cfg.Table, err)
	}
	return rows, nil
}

// values runs a single-column query and returns its rows, NULLs skipped.
func (p *Provider) values(ctx context.Context, q querier, b sq.Sqlizer) ([]any, error) {
	rows, err := p.query(ctx, q, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if v != nil {
			out = append(out, v)
		}
	}
	return out, rows.Err()
}

// texts is values with every value rendered as text.
func (p *Provider) texts(ctx context.Context, q querier, b sq.Sqlizer) ([]string, error) {
	vs, err := p.values(ctx, q, b)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, text(v))
	}
	return out, nil
}

// parameterIDs lists the distinct parameter ids admitted by where.
func (p *Provider) parameterIDs(ctx context.Context, q querier, where sq.Sqlizer) ([]string, error) {
	if p.pidCol.IsZero() {
		return []string{}, nil
	}
	pid := p.col(p.pidCol)
	return p.texts(ctx, q, p.selectFrom(pid).Distinct().Where(where).OrderBy(pid))
}
