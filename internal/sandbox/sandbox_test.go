package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cadtalk/internal/model"
)

func TestAssembleScriptSingleTopLevel(t *testing.T) {
	script, err := AssembleScript(
		[]ParamLine{{Name: "r", Literal: "3"}, {Name: "h", Literal: "10"}},
		[]string{"cyl = cylinder(r, h)"},
		[]string{"cyl"},
	)
	require.NoError(t, err)
	assert.Contains(t, script, "result = cyl")
	assert.Contains(t, script, "emit_result(result)")
}

func TestAssembleScriptAutoUnionsMultipleTopLevel(t *testing.T) {
	script, err := AssembleScript(
		[]ParamLine{{Name: "w", Literal: "1"}},
		[]string{"a = box(w, w, w)", "b = box(w, w, w)", "c = box(w, w, w)"},
		[]string{"a", "b", "c"},
	)
	require.NoError(t, err)
	assert.Contains(t, script, "auto_union_1 = union(a, b)")
	assert.Contains(t, script, "auto_union_2 = union(auto_union_1, c)")
	assert.Contains(t, script, "result = auto_union_2")
}

func TestAssembleScriptRejectsEmptyTopLevel(t *testing.T) {
	_, err := AssembleScript(nil, nil, nil)
	require.Error(t, err)
}

func TestExecutorRunWithFixtureEvaluator(t *testing.T) {
	script, err := AssembleScript(
		[]ParamLine{{Name: "w", Literal: "10"}, {Name: "h", Literal: "5"}, {Name: "d", Literal: "2"}},
		[]string{"result = box(w, h, d)"},
		[]string{"result"},
	)
	require.NoError(t, err)

	exec := NewExecutor(FixtureEvaluator{}, t.TempDir(), ResourceLimits{})
	res, err := exec.Run(context.Background(), script, Command{SessionID: "sess-12345678", Context: "creation"}, ResourceLimits{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusSuccess, res.Status)
	require.NotNil(t, res.Volume)
	assert.InDelta(t, 100.0, *res.Volume, 1e-9)
}

func TestExecutorRunPropagatesEvalError(t *testing.T) {
	script := "# parameters\n\n# operations\nresult = frobnicate(1)\n\n# sentinel\nemit_result(result)\n"

	exec := NewExecutor(FixtureEvaluator{}, t.TempDir(), ResourceLimits{})
	res, err := exec.Run(context.Background(), script, Command{SessionID: "sess-12345678", Context: "creation"}, ResourceLimits{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, res.Status)
	assert.NotEmpty(t, res.Error)
}
