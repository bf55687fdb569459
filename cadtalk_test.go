package cadtalk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cadtalk/internal/dialog"
	"github.com/smilemakc/cadtalk/internal/dialog/memory"
	"github.com/smilemakc/cadtalk/internal/edit"
	"github.com/smilemakc/cadtalk/internal/model"
	"github.com/smilemakc/cadtalk/internal/orchestrator"
	"github.com/smilemakc/cadtalk/internal/pig"
	"github.com/smilemakc/cadtalk/internal/planner"
	"github.com/smilemakc/cadtalk/internal/sandbox"
)

func newTestEngine(t *testing.T, responses ...string) *Engine {
	t.Helper()
	sessions := memory.New()
	backend := &planner.FixtureBackend{Responses: responses}
	p := planner.New(backend, t.TempDir())
	executor := sandbox.NewExecutor(sandbox.FixtureEvaluator{}, t.TempDir(), sandbox.ResourceLimits{})
	return &Engine{
		Sessions:     sessions,
		Orchestrator: orchestrator.New(sessions, p, executor),
		Edit:         edit.New(sessions, executor),
	}
}

func seedBox(t *testing.T, sessions dialog.SessionStore, sessionID string) {
	t.Helper()
	sess, err := sessions.Create(sessionID)
	require.NoError(t, err)
	w := sess.Graph.AddParameter("width", model.Number(10), nil, "mm", "")
	h := sess.Graph.AddParameter("height", model.Number(10), nil, "mm", "")
	d := sess.Graph.AddParameter("depth", model.Number(10), nil, "mm", "")
	_, err = sess.Graph.AddOperation("result", model.OpBox{}, map[string]pig.NodeRef{"width": w, "height": h, "depth": d}, "")
	require.NoError(t, err)
}

func TestStartSessionAndGetSession(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	id, err := e.StartSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", id)

	view, err := e.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", view.ID)
	assert.Empty(t, view.Parameters)
}

func TestUpdateParameterRegeneratesSubgraph(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedBox(t, e.Sessions, "s1")

	res, err := e.UpdateParameter(ctx, "s1", "width", model.Number(20))
	require.NoError(t, err)
	require.NotNil(t, res.Regeneration)
	assert.True(t, res.Regeneration.Success)
	assert.NotEmpty(t, res.Affected)
}

func TestDirectEditAndCheckpointRollback(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedBox(t, e.Sessions, "s1")

	checkpoint, err := e.Checkpoint(ctx, "s1", "before edit")
	require.NoError(t, err)
	require.NotEmpty(t, checkpoint)

	editRes, err := e.DirectEdit(ctx, "s1", "result", "result = box(width, height, depth)", true)
	require.NoError(t, err)
	require.NotNil(t, editRes.Regeneration)
	assert.True(t, editRes.Regeneration.Success)

	_, err = e.Rollback(ctx, "s1", checkpoint)
	require.NoError(t, err)

	history, err := e.EditHistory(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestValidateEditDoesNotMutateSession(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seedBox(t, e.Sessions, "s1")

	bad := model.String("not a number")
	report, err := e.ValidateEdit(ctx, "s1", nil, map[string]model.Value{"width": bad})
	require.NoError(t, err)
	assert.False(t, report.Valid)

	params, err := e.GetParameters(ctx, "s1")
	require.NoError(t, err)
	for _, p := range params {
		if p.Name == "width" {
			assert.Equal(t, 10.0, p.Value.Num)
		}
	}
}

func TestSubmitTurnFoldsGeometrySelectionIntoPrompt(t *testing.T) {
	e := newTestEngine(t, `{"intention_type": "clarification", "response_text": "ok"}`)
	ctx := context.Background()
	_, err := e.StartSession(ctx, "s1")
	require.NoError(t, err)

	result, err := e.SubmitTurn(ctx, "s1", "make it taller", &GeometrySelection{Description: "the top face"}, "openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", result.ModelUsed)
	assert.Equal(t, "ok", result.Content)

	backend := e.Orchestrator.Planner.Backend.(*planner.FixtureBackend)
	require.Len(t, backend.Prompts, 1)
	assert.Contains(t, backend.Prompts[0], "make it taller\n[regarding: the top face]")
}

func TestLoadPreviousViaEngine(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	_, err := e.StartSession(ctx, "s1")
	require.NoError(t, err)

	res, err := e.LoadPrevious(ctx, "s1", "result = box(10, 10, 10)")
	require.NoError(t, err)
	assert.Equal(t, "result = box(10, 10, 10)", res.EditableCode)
}
