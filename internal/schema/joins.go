package schema

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"sqledr/internal/introspect"
	"sqledr/internal/logger"
	"sqledr/pkg/config"
)

// ConfigurationError reports a configured table or join that the reflected
// schema cannot satisfy.
type ConfigurationError struct {
	Table string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("table %s: %v", e.Table, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Join is one external table joined onto the primary table.
type Join struct {
	Model        *TableModel
	Relationship *Relationship
}

// Graph is the primary table model, the external models joined to it and
// the joins in configuration order.
type Graph struct {
	Primary *TableModel
	Joins   []Join

	models []*TableModel
	byName map[string]*TableModel
}

// Models returns the primary model followed by the external models.
func (g *Graph) Models() []*TableModel {
	return append([]*TableModel(nil), g.models...)
}

// Model looks a table model up by table name.
func (g *Graph) Model(name string) (*TableModel, bool) {
	m, ok := g.byName[name]
	return m, ok
}

// Resolve resolves path against the primary model.
func (g *Graph) Resolve(path string) (ColumnRef, error) {
	return Resolve(g.Primary, path)
}

// From sets the primary table and every join on b, in configuration order.
func (g *Graph) From(b sq.SelectBuilder, q TableQuoter) sq.SelectBuilder {
	b = b.From(g.Primary.FromClause(q))
	for _, j := range g.Joins {
		b = b.Join(j.Model.FromClause(q) + " ON " + j.Relationship.On(q))
	}
	return b
}

// BuildJoinGraph builds the table models for primary and each external
// table and links them. Each external table becomes a relationship on the
// primary model named after the table, joined on
// primary.<foreign> = external.<remote>. The foreign side is a qualified
// path, so it may go through a table configured earlier.
func BuildJoinGraph(catalog introspect.Schema, primary string, externals []config.ExternalTable) (*Graph, error) {
	pt, ok := catalog.Table(primary)
	if !ok {
		return nil, &ConfigurationError{Table: primary, Err: fmt.Errorf("table not found")}
	}
	g := &Graph{
		Primary: newTableModel(pt),
		byName:  make(map[string]*TableModel, len(externals)+1),
	}
	g.models = append(g.models, g.Primary)
	g.byName[primary] = g.Primary

	for _, ext := range externals {
		if _, dup := g.byName[ext.Name]; dup {
			return nil, &ConfigurationError{Table: ext.Name, Err: fmt.Errorf("table configured more than once")}
		}
		et, ok := catalog.Table(ext.Name)
		if !ok {
			return nil, &ConfigurationError{Table: ext.Name, Err: fmt.Errorf("table not found")}
		}
		model := newTableModel(et)

		foreign, err := Resolve(g.Primary, ext.Foreign)
		if err != nil {
			return nil, &ConfigurationError{Table: ext.Name, Err: fmt.Errorf("foreign key: %w", err)}
		}
		remote, ok := model.Column(ext.Remote)
		if !ok {
			return nil, &ConfigurationError{Table: ext.Name, Err: fmt.Errorf("remote key: no column %q", ext.Remote)}
		}
		if pk, known := model.isPrimaryKey(ext.Remote); known && !pk {
			logger.Warn("join %s: remote key %s is not the primary key, joined rows may repeat", ext.Name, remote)
		}

		rel := &Relationship{Name: ext.Name, From: g.Primary, To: model, Foreign: foreign, Remote: remote}
		g.Primary.addRelationship(rel)
		g.models = append(g.models, model)
		g.byName[ext.Name] = model
		g.Joins = append(g.Joins, Join{Model: model, Relationship: rel})
		logger.Debug("joined %s on %s = %s", ext.Name, foreign, remote)
	}
	return g, nil
}
