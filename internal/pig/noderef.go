// Package pig implements the Parametric Intention Graph Manager: an
// arena-backed DAG of Parameter and Operation nodes with eager cycle
// rejection, topological execution order, dependents-closure parameter
// updates, and a capped version history supporting checkpoint/rollback.
//
// Per the REDESIGN FLAGS, there is no map-of-pointers node storage:
// Parameter and Operation records live in two flat arenas and every
// cross-reference is an integer index wrapped in NodeRef. A Graph
// value-copy (used for snapshot/restore) is therefore a real deep
// copy with no shared mutable state.
package pig

import "fmt"

// NodeKind distinguishes the two arenas a NodeRef can point into.
type NodeKind uint8

const (
	NodeParameter NodeKind = iota
	NodeOperation
)

// NodeRef is an opaque reference to a node in one of the Graph's two
// arenas. Callers must treat its string form as opaque; only the Graph
// interprets Kind/Idx.
type NodeRef struct {
	Kind NodeKind
	Idx  int
}

// String renders a stable, opaque external id.
func (r NodeRef) String() string {
	if r.Kind == NodeParameter {
		return fmt.Sprintf("p-%d", r.Idx)
	}
	return fmt.Sprintf("o-%d", r.Idx)
}

// IsZero reports whether r is the zero value (never a valid reference
// since index 0 parameters render as "p-0"; use the bool returned by
// lookup functions instead of comparing against this directly).
func (r NodeRef) IsZero() bool { return r.Kind == NodeParameter && r.Idx == 0 }
