package introspect

import "strings"

// Column represents a table column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	PK       bool   `json:"pk"`
}

// IsGeometry reports whether the store type looks spatial.
func (c Column) IsGeometry() bool {
	switch strings.ToLower(c.Type) {
	case "geometry", "geography", "point", "linestring", "polygon",
		"multipoint", "multilinestring", "multipolygon", "geometrycollection",
		"sdo_geometry":
		return true
	}
	return false
}

// Table represents a database table or view and its columns.
type Table struct {
	Schema  string   `json:"schema,omitempty"`
	Name    string   `json:"name"`
	View    bool     `json:"view,omitempty"`
	Columns []Column `json:"columns"`
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Schema is the set of tables reflected for one provider.
type Schema struct {
	Tables []Table `json:"tables"`
}

// Table looks a table up by name, ignoring the schema qualifier.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
