package edr

import (
	"math"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/paulmach/orb"
)

// AdmitAll is the predicate that admits every row. It renders as (1=1).
var AdmitAll sq.Sqlizer = sq.And{}

// Interval is a parsed EDR datetime. A nil bound is open.
type Interval struct {
	Start *time.Time
	End   *time.Time
	// Instant marks a single point in time; Start and End are then equal.
	Instant bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseDatetime parses an EDR datetime expression: an instant, or
// start/end where either end may be ".." or empty for open.
func ParseDatetime(expr string) (Interval, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Interval{}, nil
	}
	start, end, isRange := strings.Cut(expr, "/")
	if !isRange {
		t, err := parseInstant(expr)
		if err != nil {
			return Interval{}, err
		}
		return Interval{Start: &t, End: &t, Instant: true}, nil
	}
	if strings.Contains(end, "/") {
		return Interval{}, ErrValidation("invalid datetime %q: more than one '/'", expr)
	}
	var iv Interval
	var err error
	if iv.Start, err = parseBound(start); err != nil {
		return Interval{}, err
	}
	if iv.End, err = parseBound(end); err != nil {
		return Interval{}, err
	}
	if iv.Start != nil && iv.End != nil && iv.Start.After(*iv.End) {
		return Interval{}, ErrValidation("invalid datetime %q: start is after end", expr)
	}
	return iv, nil
}

func parseBound(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == ".." {
		return nil, nil
	}
	t, err := parseInstant(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseInstant(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrValidation("invalid datetime %q", s)
}

// ParseBBox validates a 4 or 6 value bounding box in CRS84. The 6 value
// form is [minX, minY, minZ, maxX, maxY, maxZ]; Z is ignored.
func ParseBBox(values []float64) (orb.Bound, error) {
	var minX, minY, maxX, maxY float64
	switch len(values) {
	case 4:
		minX, minY, maxX, maxY = values[0], values[1], values[2], values[3]
	case 6:
		minX, minY, maxX, maxY = values[0], values[1], values[3], values[4]
	default:
		return orb.Bound{}, ErrValidation("bbox must have 4 or 6 values, got %d", len(values))
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return orb.Bound{}, ErrValidation("bbox values must be finite")
		}
	}
	for _, x := range []float64{minX, maxX} {
		if x < -180 || x > 180 {
			return orb.Bound{}, ErrValidation("bbox longitude %g out of range [-180, 180]", x)
		}
	}
	for _, y := range []float64{minY, maxY} {
		if y < -90 || y > 90 {
			return orb.Bound{}, ErrValidation("bbox latitude %g out of range [-90, 90]", y)
		}
	}
	if minX > maxX {
		return orb.Bound{}, ErrValidation("bbox crosses the antimeridian (minx %g > maxx %g), which is not supported", minX, maxX)
	}
	if minY > maxY {
		return orb.Bound{}, ErrValidation("bbox miny %g is greater than maxy %g", minY, maxY)
	}
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}, nil
}

// BBoxFilter restricts rows to geometries intersecting bbox.
func (p *Provider) BBoxFilter(bbox []float64) (sq.Sqlizer, error) {
	if len(bbox) == 0 {
		return AdmitAll, nil
	}
	if p.geomCol.IsZero() {
		return nil, ErrValidation("bbox is not supported: collection has no geometry field")
	}
	box, err := ParseBBox(bbox)
	if err != nil {
		return nil, err
	}
	return p.dialect.Intersects(p.col(p.geomCol), box), nil
}

// DatetimeFilter restricts rows to the instant or interval in expr.
func (p *Provider) DatetimeFilter(expr string) (sq.Sqlizer, error) {
	iv, err := ParseDatetime(expr)
	if err != nil {
		return nil, err
	}
	tc := p.col(p.timeCol)
	switch {
	case iv.Instant:
		return sq.Eq{tc: p.dialect.TimeArg(*iv.Start)}, nil
	case iv.Start == nil && iv.End == nil:
		return AdmitAll, nil
	}
	and := sq.And{}
	if iv.Start != nil {
		and = append(and, sq.GtOrEq{tc: p.dialect.TimeArg(*iv.Start)})
	}
	if iv.End != nil {
		and = append(and, sq.LtOrEq{tc: p.dialect.TimeArg(*iv.End)})
	}
	return and, nil
}

// ParameterFilter admits rows whose parameter id is one of ids.
func (p *Provider) ParameterFilter(ids []string) (sq.Sqlizer, error) {
	var keep []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			keep = append(keep, id)
		}
	}
	if len(keep) == 0 {
		return AdmitAll, nil
	}
	if p.pidCol.IsZero() {
		return nil, ErrValidation("parameter-name is not supported: collection has no parameter id field")
	}
	pid := p.col(p.pidCol)
	or := make(sq.Or, 0, len(keep))
	for _, id := range keep {
		or = append(or, sq.Eq{pid: id})
	}
	return or, nil
}

// filters is the AND of the request's filters. Coverage requests do not
// filter on bbox.
func (p *Provider) filters(q Query, withBBox bool) (sq.And, error) {
	where := sq.And{}
	if withBBox {
		f, err := p.BBoxFilter(q.BBox)
		if err != nil {
			return nil, err
		}
		where = append(where, f)
	}
	f, err := p.ParameterFilter(q.Parameters)
	if err != nil {
		return nil, err
	}
	where = append(where, f)
	if f, err = p.DatetimeFilter(q.Datetime); err != nil {
		return nil, err
	}
	return append(where, f), nil
}
