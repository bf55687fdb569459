package sandbox

import (
	"fmt"
	"strings"

	"github.com/smilemakc/cadtalk/internal/model"
)

// ParamLine is one parameter declaration for a script's "# parameters"
// block, already resolved to its literal DSL rendering.
type ParamLine struct {
	Name    string
	Literal string
}

// AssembleScript builds a complete script from a parameter block and
// the operations' rendered lines, in dependency order. topLevelVars
// names the result variables of every operation with no dependent
// operation of its own (the DAG's "leaves" from the output side); when
// more than one exists, they are unioned left-to-right in insertion
// order — matching spec.md §4.2's auto-union rule for multi-primitive
// plans without an explicit boolean step — so the script always
// resolves to exactly one `result`.
func AssembleScript(params []ParamLine, opLines []string, topLevelVars []string) (string, error) {
	if len(topLevelVars) == 0 {
		return "", fmt.Errorf("sandbox: script has no operations to resolve to a result")
	}

	var b strings.Builder
	b.WriteString("# parameters\n")
	for _, p := range params {
		fmt.Fprintf(&b, "%s = %s\n", p.Name, p.Literal)
	}

	b.WriteString("\n# operations\n")
	for _, line := range opLines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	resultVar := topLevelVars[0]
	if len(topLevelVars) > 1 {
		acc := topLevelVars[0]
		for i, v := range topLevelVars[1:] {
			next := fmt.Sprintf("auto_union_%d", i+1)
			fmt.Fprintf(&b, "%s = union(%s, %s)\n", next, acc, v)
			acc = next
		}
		resultVar = acc
	}
	fmt.Fprintf(&b, "result = %s\n", resultVar)

	b.WriteString("\n# sentinel\nemit_result(result)\n")
	return b.String(), nil
}

// ParamLinesFromValues renders a deterministic "# parameters" block
// from a name->Value map, sorted by name.
func ParamLinesFromValues(values map[string]model.Value) []ParamLine {
	names := model.SortedKeys(values)
	out := make([]ParamLine, 0, len(names))
	for _, n := range names {
		out = append(out, ParamLine{Name: n, Literal: values[n].Literal()})
	}
	return out
}
