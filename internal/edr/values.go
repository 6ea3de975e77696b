package edr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// text renders a scanned value as an identifier or label.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return formatTime(t, false)
	default:
		return fmt.Sprint(t)
	}
}

// formatTime renders t as YYYY-MM-DD when dateOnly is set and as RFC 3339
// otherwise.
func formatTime(t time.Time, dateOnly bool) string {
	if dateOnly {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

// dateOnly reports whether the time column holds calendar dates. The
// column type decides, so every value of one column renders alike.
func (p *Provider) dateOnly() bool {
	return strings.EqualFold(strings.TrimSpace(p.timeCol.Type), "date")
}

// timeText renders a scanned time column value.
func (p *Provider) timeText(v any) string {
	if t, ok := v.(time.Time); ok {
		return formatTime(t, p.dateOnly())
	}
	return text(v)
}

// timeValue is timeText keeping SQL NULL as nil.
func (p *Provider) timeValue(v any) any {
	if v == nil {
		return nil
	}
	return p.timeText(v)
}

// number normalizes a scanned result value. Drivers that return decimals
// as text get them parsed; non-numeric text passes through.
func number(v any) any {
	switch t := v.(type) {
	case []byte:
		return parseNumber(string(t))
	case string:
		return parseNumber(t)
	case float32:
		return float64(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}

func parseNumber(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// decodeGeometry decodes a WKB value selected through Dialect.Geometry.
func decodeGeometry(v any) (orb.Geometry, error) {
	var blob []byte
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		blob = t
	case string:
		blob = []byte(t)
	default:
		return nil, fmt.Errorf("geometry: unexpected %T", v)
	}
	if len(blob) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(blob)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	return g, nil
}

func toGeoJSON(g orb.Geometry) *geojson.Geometry {
	if g == nil {
		return nil
	}
	return geojson.NewGeometry(g)
}
