package introspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaLookups(t *testing.T) {
	s := Schema{Tables: []Table{
		{Schema: "capture", Name: "daily", Columns: []Column{
			{Name: "id", Type: "integer", PK: true},
			{Name: "geometry", Type: "geometry", Nullable: true},
		}},
		{Schema: "capture", Name: "meta", View: true},
	}}

	daily, ok := s.Table("daily")
	assert.True(t, ok)
	col, ok := daily.Column("geometry")
	assert.True(t, ok)
	assert.True(t, col.IsGeometry())

	_, ok = daily.Column("missing")
	assert.False(t, ok)
	_, ok = s.Table("missing")
	assert.False(t, ok)

	id, _ := daily.Column("id")
	assert.False(t, id.IsGeometry())
}
