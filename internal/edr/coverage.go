package edr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/paulmach/orb"
)

// Coverage returns the time series of every parameter observed at
// q.LocationID. The time axis holds the most recent q.Limit distinct times
// in ascending order; gaps are null.
func (p *Provider) Coverage(ctx context.Context, q Query) (*Coverage, error) {
	where, err := p.filters(q, false)
	if err != nil {
		return nil, err
	}
	conn, err := p.session(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	atLocation := sq.Eq{p.col(p.locCol): q.LocationID}
	cov := &Coverage{
		Type: "Coverage",
		Domain: Domain{
			Type:        "Domain",
			DomainType:  "Point",
			Referencing: []ReferenceSystemConnection{geographicCRS, temporalRS},
		},
		Parameters: map[string]Parameter{},
		Ranges:     map[string]*NdArray{},
	}
	if err := p.locate(ctx, conn, q.LocationID, &cov.Domain); err != nil {
		return nil, err
	}

	scoped := append(sq.And{atLocation}, where...)
	pids, err := p.parameterIDs(ctx, conn, scoped)
	if err != nil {
		return nil, err
	}
	params, err := p.parameters(ctx, conn, pids)
	if err != nil {
		return nil, err
	}

	query, err := p.pivot(scoped, atLocation, pids, p.limit(q.Limit))
	if err != nil {
		return nil, err
	}
	times, series, err := p.scanPivot(ctx, conn, query, len(pids))
	if err != nil {
		return nil, err
	}

	cov.Domain.Axes.T.Values = times
	for i, param := range params {
		cov.Parameters[param.ID] = param
		cov.Ranges[param.ID] = &NdArray{
			Type:      "NdArray",
			DataType:  "float",
			AxisNames: []string{"t"},
			Shape:     []int{len(times)},
			Values:    series[i],
		}
	}
	if len(times) > 1 {
		cov.Domain.DomainType += "Series"
	}
	return cov, nil
}

// locate fails with a NotFoundError when no row matches the location and
// fills the spatial part of the domain from its geometry.
func (p *Provider) locate(ctx context.Context, q querier, id string, d *Domain) error {
	atLocation := sq.Eq{p.col(p.locCol): id}
	if p.geomCol.IsZero() {
		lc := p.col(p.locCol)
		ids, err := p.values(ctx, q, p.dialect.Limit(p.selectFrom(lc).Where(atLocation), 1))
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return ErrNotFound("location %s not found", id)
		}
		return nil
	}

	g, err := p.geometry(ctx, q, atLocation)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound("location %s not found", id)
	}
	if err != nil {
		return err
	}
	switch g := g.(type) {
	case nil:
	case orb.Point:
		d.Axes.X = &ValuesAxis{Values: []any{g.X()}}
		d.Axes.Y = &ValuesAxis{Values: []any{g.Y()}}
	default:
		d.DomainType = g.GeoJSONType()
		d.Axes.Composite = &CompositeAxis{
			DataType:    compositeDataType(g),
			Coordinates: []string{"x", "y"},
			Values:      toGeoJSON(g),
		}
	}
	return nil
}

func compositeDataType(g orb.Geometry) string {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return "polygon"
	default:
		return "tuple"
	}
}

// pivot builds the query that turns observations into one row per time
// step with a column per parameter:
//
//	WITH spine AS (SELECT DISTINCT time AS t ... ORDER BY t DESC LIMIT n)
//	SELECT spine.t, MAX(CASE WHEN obs.pid = ? THEN obs.val END) AS p0, ...
//	FROM spine LEFT JOIN (observations at the location) obs ON obs.t = spine.t
//	GROUP BY spine.t ORDER BY spine.t ASC
//
// The spine carries the request filters; the observations only the
// location, so every spine time keeps all of its parameters. Parameter
// columns are aliased by position: ids are bound, never spliced into SQL.
func (p *Provider) pivot(scoped, atLocation sq.Sqlizer, pids []string, limit uint64) (sq.Sqlizer, error) {
	inner := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	tc := p.col(p.timeCol)

	spine := p.graph.From(inner.Select(tc+" AS t"), p.dialect).
		Distinct().
		Where(scoped).
		OrderBy("t DESC")
	spineSQL, spineArgs, err := p.dialect.Limit(spine, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build time spine: %w", err)
	}

	obsColumns := []string{tc + " AS t", p.col(p.resultCol) + " AS val"}
	if !p.pidCol.IsZero() {
		obsColumns = append(obsColumns, p.col(p.pidCol)+" AS pid")
	}
	obsSQL, obsArgs, err := p.graph.From(inner.Select(obsColumns...), p.dialect).Where(atLocation).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build observations: %w", err)
	}

	b := p.sb.Select("spine.t").
		Prefix("WITH spine AS ("+spineSQL+")", spineArgs...)
	for i, pid := range pids {
		b = b.Column(sq.Expr(fmt.Sprintf("MAX(CASE WHEN obs.pid = ? THEN obs.val END) AS p%d", i), pid))
	}
	return b.From("spine").
		LeftJoin("("+obsSQL+") obs ON obs.t = spine.t", obsArgs...).
		GroupBy("spine.t").
		OrderBy("spine.t ASC"), nil
}

// scanPivot reads the pivot rows into the time axis and one value series
// per parameter column.
func (p *Provider) scanPivot(ctx context.Context, q querier, query sq.Sqlizer, n int) ([]any, [][]any, error) {
	rows, err := p.query(ctx, q, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	times := []any{}
	series := make([][]any, n)
	for i := range series {
		series[i] = []any{}
	}
	dest := make([]any, n+1)
	for rows.Next() {
		row := make([]any, n+1)
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scan coverage row: %w", err)
		}
		times = append(times, p.timeValue(row[0]))
		for i := range series {
			series[i] = append(series[i], number(row[i+1]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("read coverage: %w", err)
	}
	return times, series, nil
}
