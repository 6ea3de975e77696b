// Package schema turns reflected tables into an explicit graph of table
// models linked by named relationships, and resolves dot-qualified field
// names against it.
package schema

import (
	"sqledr/internal/introspect"
)

// Quoter quotes identifiers for one store.
type Quoter interface {
	Quote(ident string) string
}

// TableQuoter also renders schema-qualified table names.
type TableQuoter interface {
	Quoter
	Table(schemaName, table string) string
}

// ColumnRef is a concrete column usable in predicates, projections and
// orderings. It is a comparable value: resolving the same path twice gives
// equal refs.
type ColumnRef struct {
	Table  string // alias of the owning table in queries
	Column string
	Type   string
}

// SQL renders the column as alias.column.
func (c ColumnRef) SQL(q Quoter) string {
	return q.Quote(c.Table) + "." + q.Quote(c.Column)
}

func (c ColumnRef) String() string { return c.Table + "." + c.Column }

// IsZero reports whether c refers to nothing, i.e. an unset role.
func (c ColumnRef) IsZero() bool { return c == ColumnRef{} }

// TableModel is the reflection of one table or view together with its
// outgoing relationships. Only the join graph builder adds relationships;
// a model is not modified once the graph is built.
type TableModel struct {
	Schema string
	Name   string
	View   bool

	columns       []introspect.Column
	relationships map[string]*Relationship
	relOrder      []string
}

func newTableModel(t introspect.Table) *TableModel {
	return &TableModel{
		Schema:        t.Schema,
		Name:          t.Name,
		View:          t.View,
		columns:       t.Columns,
		relationships: make(map[string]*Relationship),
	}
}

// Alias is the name the table goes by in queries.
func (m *TableModel) Alias() string { return m.Name }

// Column looks a column up by exact name.
func (m *TableModel) Column(name string) (ColumnRef, bool) {
	for _, c := range m.columns {
		if c.Name == name {
			return ColumnRef{Table: m.Alias(), Column: c.Name, Type: c.Type}, true
		}
	}
	return ColumnRef{}, false
}

// Columns returns the reflected columns in table order.
func (m *TableModel) Columns() []introspect.Column {
	return append([]introspect.Column(nil), m.columns...)
}

func (m *TableModel) isPrimaryKey(column string) (pk bool, known bool) {
	for _, c := range m.columns {
		if c.PK {
			known = true
			if c.Name == column {
				pk = true
			}
		}
	}
	return pk, known
}

// Relationship returns the outgoing relationship called name.
func (m *TableModel) Relationship(name string) (*Relationship, bool) {
	r, ok := m.relationships[name]
	return r, ok
}

// Relationships returns the outgoing relationships in the order added.
func (m *TableModel) Relationships() []*Relationship {
	out := make([]*Relationship, 0, len(m.relOrder))
	for _, name := range m.relOrder {
		out = append(out, m.relationships[name])
	}
	return out
}

func (m *TableModel) addRelationship(r *Relationship) {
	m.relationships[r.Name] = r
	m.relOrder = append(m.relOrder, r.Name)
}

// FromClause renders the table with its alias, e.g. "capture"."daily" "daily".
func (m *TableModel) FromClause(q TableQuoter) string {
	return q.Table(m.Schema, m.Name) + " " + q.Quote(m.Alias())
}

// Relationship is a directed, single-valued edge from one table model to
// another, joined on Foreign = Remote.
type Relationship struct {
	Name    string
	From    *TableModel
	To      *TableModel
	Foreign ColumnRef
	Remote  ColumnRef
}

// On renders the join predicate.
func (r *Relationship) On(q Quoter) string {
	return r.Foreign.SQL(q) + " = " + r.Remote.SQL(q)
}
