package edr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/paulmach/orb"
)

// FeatureCollection lists the locations admitted by q's filters, ordered
// by location id and capped at q.Limit.
func (p *Provider) FeatureCollection(ctx context.Context, q Query) (*FeatureCollection, error) {
	where, err := p.filters(q, true)
	if err != nil {
		return nil, err
	}
	conn, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	pids, err := p.parameterIDs(ctx, conn, where)
	if err != nil {
		return nil, err
	}
	params, err := p.parameters(ctx, conn, pids)
	if err != nil {
		return nil, err
	}

	lc := p.col(p.locCol)
	lb := p.selectFrom(lc).Distinct().Where(where).OrderBy(lc + " ASC")
	locs, err := p.texts(ctx, conn, p.dialect.Limit(lb, p.limit(q.Limit)))
	if err != nil {
		return nil, err
	}

	fc := &FeatureCollection{
		Type:       "FeatureCollection",
		Features:   make([]Feature, 0, len(locs)),
		Parameters: params,
	}
	for _, loc := range locs {
		f, err := p.feature(ctx, conn, where, loc)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, f)
	}
	fc.NumberReturned = len(fc.Features)
	return fc, nil
}

// feature summarizes one location under the request filters.
func (p *Provider) feature(ctx context.Context, q querier, where sq.And, loc string) (Feature, error) {
	scoped := append(append(sq.And{}, where...), sq.Eq{p.col(p.locCol): loc})
	f := Feature{Type: "Feature", ID: loc}

	tc := p.col(p.timeCol)
	rows, err := p.query(ctx, q, p.selectFrom("MIN("+tc+")", "MAX("+tc+")").Where(scoped))
	if err != nil {
		return f, err
	}
	var first, last any
	if rows.Next() {
		err = rows.Scan(&first, &last)
	} else {
		err = rows.Err()
	}
	rows.Close()
	if err != nil {
		return f, fmt.Errorf("scan time extent of %s: %w", loc, err)
	}
	if first != nil {
		f.Properties.Datetime = p.timeText(first) + "/" + p.timeText(last)
	}

	if f.Properties.ParameterName, err = p.parameterIDs(ctx, q, scoped); err != nil {
		return f, err
	}

	if !p.geomCol.IsZero() {
		g, err := p.geometry(ctx, q, scoped)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return f, err
		}
		f.Geometry = toGeoJSON(g)
	}
	return f, nil
}

// geometry decodes the geometry of the first row admitted by where.
// It returns sql.ErrNoRows when no row matches.
func (p *Provider) geometry(ctx context.Context, q querier, where sq.Sqlizer) (orb.Geometry, error) {
	b := p.selectFrom(p.dialect.Geometry(p.col(p.geomCol))).Where(where)
	rows, err := p.query(ctx, q, p.dialect.Limit(b, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	var raw any
	if err := rows.Scan(&raw); err != nil {
		return nil, fmt.Errorf("scan geometry: %w", err)
	}
	return decodeGeometry(raw)
}
