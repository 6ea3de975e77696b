package edr

import (
	"context"
	"fmt"
	"maps"
)

// Fields returns the observable parameters keyed by parameter id. The
// catalog is read from the store once; later calls, concurrent ones
// included, share that result. A failed read is not cached.
func (p *Provider) Fields(ctx context.Context) (map[string]FieldMeta, error) {
	return p.catalog(ctx, nil)
}

// catalog is Fields reading through q, or through its own session when q
// is nil.
func (p *Provider) catalog(ctx context.Context, q querier) (map[string]FieldMeta, error) {
	if p.pidCol.IsZero() {
		return map[string]FieldMeta{}, nil
	}
	if f := p.cachedFields(); f != nil {
		return maps.Clone(f), nil
	}
	v, err, _ := p.fieldsGroup.Do("fields", func() (any, error) {
		if f := p.cachedFields(); f != nil {
			return f, nil
		}
		f, err := p.loadFields(ctx, q)
		if err != nil {
			return nil, err
		}
		p.fieldsMu.Lock()
		p.fields = f
		p.fieldsMu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return maps.Clone(v.(map[string]FieldMeta)), nil
}

func (p *Provider) cachedFields() map[string]FieldMeta {
	p.fieldsMu.Lock()
	defer p.fieldsMu.Unlock()
	return p.fields
}

func (p *Provider) loadFields(ctx context.Context, q querier) (map[string]FieldMeta, error) {
	if q == nil {
		conn, err := p.session(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		q = conn
	}

	pid := p.col(p.pidCol)
	name, unit := "NULL", "NULL"
	order := []string{pid}
	if !p.pnameCol.IsZero() {
		name = p.col(p.pnameCol)
		order = append(order, name)
	}
	if !p.punitCol.IsZero() {
		unit = p.col(p.punitCol)
		order = append(order, unit)
	}
	// first row per id wins, so the order must be total over the selection
	rows, err := p.query(ctx, q, p.selectFrom(pid, name, unit).Distinct().OrderBy(order...))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := make(map[string]FieldMeta)
	for rows.Next() {
		var id, title, symbol any
		if err := rows.Scan(&id, &title, &symbol); err != nil {
			return nil, fmt.Errorf("scan parameter: %w", err)
		}
		if id == nil {
			continue
		}
		key := text(id)
		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = FieldMeta{Type: "number", Title: text(title), Unit: text(symbol)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read parameters: %w", err)
	}
	return fields, nil
}

// parameters expands ids into Parameter objects, in the order given.
func (p *Provider) parameters(ctx context.Context, q querier, ids []string) ([]Parameter, error) {
	fields, err := p.catalog(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Parameter, 0, len(ids))
	for _, id := range ids {
		out = append(out, newParameter(id, fields[id]))
	}
	return out, nil
}
