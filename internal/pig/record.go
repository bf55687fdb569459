package pig

import "github.com/smilemakc/cadtalk/internal/model"

// Bounds constrains a numeric parameter. Expr, when non-empty, is an
// expr-lang boolean expression evaluated with the candidate value bound
// to "value" and every other parameter's current value bound by name;
// it must evaluate true for the update to be accepted. Min/Max are
// checked first and are cheaper, so Expr is only evaluated once the
// literal bounds (if any) already pass.
type Bounds struct {
	Min  *float64
	Max  *float64
	Expr string
}

// parameterRecord is one slot in the Graph's parameter arena.
type parameterRecord struct {
	name        string
	value       model.Value
	ptype       model.ParameterType
	bounds      *Bounds
	units       string
	description string
	deps        map[NodeRef]struct{} // always empty: parameters never depend on other nodes
	dependents  map[NodeRef]struct{}
	seq         int
}

func (r parameterRecord) clone() parameterRecord {
	cp := r
	cp.deps = cloneRefSet(r.deps)
	cp.dependents = cloneRefSet(r.dependents)
	if r.bounds != nil {
		b := *r.bounds
		cp.bounds = &b
	}
	return cp
}

// operationRecord is one slot in the Graph's operation arena.
type operationRecord struct {
	name        string
	kind        model.OperationKind
	inputs      map[string]NodeRef // local input name -> bound NodeRef
	deps        map[NodeRef]struct{}
	dependents  map[NodeRef]struct{}
	description string
	metadata    map[string]any
	seq         int
}

func (r operationRecord) clone() operationRecord {
	cp := r
	cp.deps = cloneRefSet(r.deps)
	cp.dependents = cloneRefSet(r.dependents)
	cp.inputs = make(map[string]NodeRef, len(r.inputs))
	for k, v := range r.inputs {
		cp.inputs[k] = v
	}
	if r.metadata != nil {
		md := make(map[string]any, len(r.metadata))
		for k, v := range r.metadata {
			md[k] = v
		}
		cp.metadata = md
	}
	return cp
}

func cloneRefSet(s map[NodeRef]struct{}) map[NodeRef]struct{} {
	cp := make(map[NodeRef]struct{}, len(s))
	for k := range s {
		cp[k] = struct{}{}
	}
	return cp
}

// render renders the operation's DSL fragment assigning its result to
// resultVar, resolving each required input to the name bound to it.
func (r operationRecord) render(resultVar string, nameOf func(NodeRef) string) (string, error) {
	inputs := make(map[string]string, len(r.inputs))
	for local, ref := range r.inputs {
		inputs[local] = nameOf(ref)
	}
	return r.kind.Render(resultVar, inputs)
}
