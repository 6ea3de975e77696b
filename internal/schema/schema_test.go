package schema

import (
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqledr/internal/introspect"
	"sqledr/pkg/config"
)

type quoter struct{}

func (quoter) Quote(ident string) string { return `"` + ident + `"` }

func (q quoter) Table(schemaName, table string) string {
	if schemaName == "" {
		return q.Quote(table)
	}
	return q.Quote(schemaName) + "." + q.Quote(table)
}

func testCatalog() introspect.Schema {
	return introspect.Schema{Tables: []introspect.Table{
		{Schema: "capture", Name: "daily", Columns: []introspect.Column{
			{Name: "id", Type: "integer", PK: true},
			{Name: "monitoring_location_id", Type: "text"},
			{Name: "parameter_code", Type: "text"},
			{Name: "time", Type: "date"},
			{Name: "value", Type: "double precision"},
			{Name: "geometry", Type: "geometry"},
		}},
		{Schema: "capture", Name: "metadata", Columns: []introspect.Column{
			{Name: "parameter_code", Type: "text", PK: true},
			{Name: "parameter_name", Type: "text"},
			{Name: "group_id", Type: "integer"},
		}},
		{Schema: "capture", Name: "groups", Columns: []introspect.Column{
			{Name: "id", Type: "integer", PK: true},
			{Name: "label", Type: "text"},
		}},
	}}
}

func testGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := BuildJoinGraph(testCatalog(), "daily", []config.ExternalTable{
		{Name: "metadata", Foreign: "parameter_code", Remote: "parameter_code"},
		{Name: "groups", Foreign: "metadata.group_id", Remote: "id"},
	})
	require.NoError(t, err)
	return g
}

func TestBuildJoinGraph(t *testing.T) {
	g := testGraph(t)

	models := g.Models()
	require.Len(t, models, 3)
	assert.Equal(t, "daily", models[0].Name)
	assert.Equal(t, "metadata", models[1].Name)
	assert.Equal(t, "groups", models[2].Name)

	require.Len(t, g.Joins, 2)
	assert.Equal(t, "metadata", g.Joins[0].Model.Name)
	assert.Equal(t, "groups", g.Joins[1].Model.Name)
	assert.Equal(t, `"daily"."parameter_code" = "metadata"."parameter_code"`, g.Joins[0].Relationship.On(quoter{}))
	assert.Equal(t, `"metadata"."group_id" = "groups"."id"`, g.Joins[1].Relationship.On(quoter{}))

	for _, name := range []string{"metadata", "groups"} {
		rel, ok := g.Primary.Relationship(name)
		require.True(t, ok, name)
		m, _ := g.Model(name)
		assert.Same(t, m, rel.To)
	}
	rels := g.Primary.Relationships()
	require.Len(t, rels, 2)
	assert.Equal(t, "metadata", rels[0].Name)
}

func TestGraphFrom(t *testing.T) {
	g := testGraph(t)
	query, _, err := g.From(sq.Select("1"), quoter{}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 FROM "capture"."daily" "daily"`+
		` JOIN "capture"."metadata" "metadata" ON "daily"."parameter_code" = "metadata"."parameter_code"`+
		` JOIN "capture"."groups" "groups" ON "metadata"."group_id" = "groups"."id"`, query)
}

func TestBuildJoinGraphErrors(t *testing.T) {
	var tests = []struct {
		name      string
		primary   string
		externals []config.ExternalTable
		table     string
	}{
		{"missing primary", "nope", nil, "nope"},
		{"missing external", "daily", []config.ExternalTable{{Name: "nope", Foreign: "parameter_code", Remote: "parameter_code"}}, "nope"},
		{"bad foreign", "daily", []config.ExternalTable{{Name: "metadata", Foreign: "code", Remote: "parameter_code"}}, "metadata"},
		{"bad remote", "daily", []config.ExternalTable{{Name: "metadata", Foreign: "parameter_code", Remote: "code"}}, "metadata"},
		{"foreign through later table", "daily", []config.ExternalTable{
			{Name: "groups", Foreign: "metadata.group_id", Remote: "id"},
			{Name: "metadata", Foreign: "parameter_code", Remote: "parameter_code"},
		}, "groups"},
		{"duplicate", "daily", []config.ExternalTable{
			{Name: "metadata", Foreign: "parameter_code", Remote: "parameter_code"},
			{Name: "metadata", Foreign: "parameter_code", Remote: "parameter_code"},
		}, "metadata"},
		{"primary as external", "daily", []config.ExternalTable{{Name: "daily", Foreign: "id", Remote: "id"}}, "daily"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildJoinGraph(testCatalog(), tt.primary, tt.externals)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.table, cfgErr.Table)
			assert.Contains(t, err.Error(), tt.table)
		})
	}
}

func TestResolve(t *testing.T) {
	g := testGraph(t)

	var tests = []struct {
		path string
		want ColumnRef
	}{
		{"time", ColumnRef{Table: "daily", Column: "time", Type: "date"}},
		{"metadata.parameter_name", ColumnRef{Table: "metadata", Column: "parameter_name", Type: "text"}},
		{"groups.label", ColumnRef{Table: "groups", Column: "label", Type: "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := g.Resolve(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Resolve(g.Primary, tt.path)
			require.NoError(t, err)
			assert.True(t, got == again)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	g := testGraph(t)

	var tests = []struct {
		path    string
		segment string
	}{
		{"nope", "nope"},
		{"nope.parameter_name", "nope"},
		{"metadata.nope", "nope"},
		{"time.year", "time"},
		{"metadata.groups.label", "groups"},
		{"", ""},
		{"metadata..label", ""},
		{".time", ""},
		{strings.Repeat("metadata.", MaxPathDepth) + "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := g.Resolve(tt.path)
			var resErr *ResolutionError
			require.ErrorAs(t, err, &resErr)
			assert.Equal(t, tt.path, resErr.Path)
			assert.Equal(t, tt.segment, resErr.Segment)
		})
	}
}

func TestColumnRef(t *testing.T) {
	ref := ColumnRef{Table: "daily", Column: "value"}
	assert.Equal(t, `"daily"."value"`, ref.SQL(quoter{}))
	assert.Equal(t, "daily.value", ref.String())
	assert.False(t, ref.IsZero())
	assert.True(t, ColumnRef{}.IsZero())
}
