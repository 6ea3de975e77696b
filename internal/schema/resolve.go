package schema

import (
	"fmt"
	"strings"
)

// MaxPathDepth bounds the number of segments in a qualified path.
const MaxPathDepth = 8

// ResolutionError reports a qualified path that does not name a column.
type ResolutionError struct {
	Path    string
	Table   string
	Segment string
	Reason  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Path, e.Reason)
}

// Resolve turns a dot-qualified path such as "relationship.column" into a
// column reference, following relationships from root. The final segment
// must be a column; every earlier one a relationship.
func Resolve(root *TableModel, path string) (ColumnRef, error) {
	if n := strings.Count(path, ".") + 1; n > MaxPathDepth {
		return ColumnRef{}, &ResolutionError{Path: path, Table: root.Name,
			Reason: fmt.Sprintf("%d segments, at most %d allowed", n, MaxPathDepth)}
	}
	return resolve(root, path, path)
}

func resolve(m *TableModel, full, rest string) (ColumnRef, error) {
	head, tail, hop := strings.Cut(rest, ".")
	if head == "" {
		return ColumnRef{}, &ResolutionError{Path: full, Table: m.Name, Reason: "empty path segment"}
	}
	if !hop {
		col, ok := m.Column(head)
		if !ok {
			return ColumnRef{}, &ResolutionError{Path: full, Table: m.Name, Segment: head,
				Reason: fmt.Sprintf("table %s has no column %q", m.Name, head)}
		}
		return col, nil
	}
	rel, ok := m.Relationship(head)
	if !ok {
		return ColumnRef{}, &ResolutionError{Path: full, Table: m.Name, Segment: head,
			Reason: fmt.Sprintf("table %s has no relationship %q", m.Name, head)}
	}
	return resolve(rel.To, full, tail)
}
