package planner

import (
	"fmt"

	"github.com/smilemakc/cadtalk/internal/model"
)

// ValidatePlan checks a Plan for structural validity before it reaches
// the Executor, per _validate_execution_plan: a script-form plan just
// needs a non-empty script naming a result; an AST-form plan is
// checked node-by-node against each operation kind's RequiredInputs().
// A node with an unrecognised operation is skipped with a warning; a
// node missing a required input is an error that makes the plan
// invalid.
func ValidatePlan(plan model.Plan) model.ValidationResult {
	var issues []model.ValidationIssue
	var warnings []string

	switch {
	case plan.HasScript():
		if !containsResultAssignment(plan.Script) {
			issues = append(issues, model.ValidationIssue{
				NodeID:  plan.ID,
				Kind:    "script",
				Message: "script must assign a final \"result\" variable",
			})
		}
	case len(plan.ASTNodes) > 0:
		for _, node := range plan.ASTNodes {
			kind := model.KindFromTag(node.Operation, "")
			if _, ok := kind.(model.OpFreeScript); ok {
				warnings = append(warnings, fmt.Sprintf("node %s: unrecognised operation %q, treated as free script", node.ID, node.Operation))
				continue
			}
			for _, required := range kind.RequiredInputs() {
				if _, ok := node.Parameters[required]; !ok {
					issues = append(issues, model.ValidationIssue{
						NodeID:  node.ID,
						Kind:    "missing_input",
						Message: fmt.Sprintf("operation %q is missing required input %q", node.Operation, required),
					})
				}
			}
		}
	default:
		issues = append(issues, model.ValidationIssue{
			NodeID:  plan.ID,
			Kind:    "empty_plan",
			Message: "plan has neither a script nor ast_nodes",
		})
	}

	return model.ValidationResult{Valid: len(issues) == 0, Errors: issues, Warnings: warnings}
}

func containsResultAssignment(script string) bool {
	for i := 0; i+len("result")+1 <= len(script); i++ {
		if script[i:i+6] == "result" {
			j := i + 6
			for j < len(script) && script[j] == ' ' {
				j++
			}
			if j < len(script) && script[j] == '=' {
				return true
			}
		}
	}
	return false
}
