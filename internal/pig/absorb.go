package pig

import (
	"fmt"
	"strings"

	"github.com/smilemakc/cadtalk/internal/model"
)

// AbsorbPlan merges a successfully executed Plan's parameters and
// operations into the graph. The Orchestrator absorbs a plan into the
// session's graph only after the Executor has returned
// model.StatusSuccess for it, so a failed or timed-out execution leaves
// that graph untouched; an AST-form plan is also absorbed beforehand
// into a scratch copy of the graph, which is rendered to produce the
// script to run.
func (g *Graph) AbsorbPlan(plan model.Plan) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, name := range model.SortedKeys(plan.Parameters) {
		v, err := model.FromAny(plan.Parameters[name])
		if err != nil {
			return fmt.Errorf("plan %s: parameter %q: %w", plan.ID, name, err)
		}
		g.addParameterLocked(name, v, nil, "", "")
	}
	for _, name := range model.SortedKeys(plan.NewParameters) {
		v, err := model.FromAny(plan.NewParameters[name])
		if err != nil {
			return fmt.Errorf("plan %s: new parameter %q: %w", plan.ID, name, err)
		}
		g.addParameterLocked(name, v, nil, "", "")
	}

	switch {
	case plan.HasScript():
		return g.absorbScriptLocked(plan)
	case len(plan.ASTNodes) > 0:
		return g.absorbASTLocked(plan)
	default:
		return nil
	}
}

// absorbScriptLocked wires the plan's complete script as a single
// operation depending on every parameter the plan declared. A verbatim
// script cannot be parsed for fine-grained per-field dependencies
// without understanding the embedded DSL's grammar, so the operation
// conservatively depends on the whole declared parameter set; this is
// the "preferred" plan form per spec.md §3, and the common case.
func (g *Graph) absorbScriptLocked(plan model.Plan) error {
	name := plan.ID
	if name == "" {
		name = fmt.Sprintf("plan_%d", g.nextSeq())
	}

	inputs := map[string]NodeRef{}
	n := 0
	allNames := model.SortedKeys(plan.Parameters)
	for _, nn := range model.SortedKeys(plan.NewParameters) {
		allNames = append(allNames, nn)
	}
	for _, pname := range allNames {
		idx, ok := g.paramByName[strings.ToLower(pname)]
		if !ok {
			continue
		}
		inputs[fmt.Sprintf("p%d", n)] = NodeRef{NodeParameter, idx}
		n++
	}

	_, err := g.addOperationLocked(name, model.OpFreeScript{Script: plan.Script}, inputs, plan.Description)
	return err
}

// absorbASTLocked wires one operation per AST node. A node's Parameters
// map is keyed by local input name (as named by the node's operation
// kind, e.g. "radius", "height"); a string value that names an existing
// parameter binds that parameter as the input, and any other value is
// materialised as a new parameter named "<nodeID>_<localInput>" so the
// operation always has a concrete dependency to bind to.
func (g *Graph) absorbASTLocked(plan model.Plan) error {
	for _, node := range plan.ASTNodes {
		kind := model.KindFromTag(node.Operation, "")
		inputs := map[string]NodeRef{}
		for _, local := range model.SortedKeys(node.Parameters) {
			raw := node.Parameters[local]
			var ref NodeRef
			if s, ok := raw.(string); ok {
				if idx, ok := g.paramByName[strings.ToLower(s)]; ok {
					ref = NodeRef{NodeParameter, idx}
					inputs[local] = ref
					continue
				}
			}
			v, err := model.FromAny(raw)
			if err != nil {
				return fmt.Errorf("plan %s: node %s: parameter %q: %w", plan.ID, node.ID, local, err)
			}
			ref = g.addParameterLocked(node.ID+"_"+local, v, nil, "", "")
			inputs[local] = ref
		}
		name := node.ID
		if name == "" {
			name = fmt.Sprintf("op_%d", g.nextSeq())
		}
		if _, err := g.addOperationLocked(name, kind, inputs, ""); err != nil {
			return fmt.Errorf("plan %s: node %s: %w", plan.ID, node.ID, err)
		}
	}
	return nil
}
