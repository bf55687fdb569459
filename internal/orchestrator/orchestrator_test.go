package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cadtalk/internal/dialog/memory"
	"github.com/smilemakc/cadtalk/internal/model"
	"github.com/smilemakc/cadtalk/internal/pig"
	"github.com/smilemakc/cadtalk/internal/planner"
	"github.com/smilemakc/cadtalk/internal/sandbox"
)

func newTestOrchestrator(responses []string) (*Orchestrator, *memory.Store) {
	store := memory.New()
	backend := &planner.FixtureBackend{Responses: responses}
	p := planner.New(backend, "")
	executor := sandbox.NewExecutor(sandbox.FixtureEvaluator{}, "/tmp/cadtalk-orchestrator-test", sandbox.ResourceLimits{})
	return New(store, p, executor), store
}

func TestSubmitTurnNewInstructionBuildsModel(t *testing.T) {
	o, store := newTestOrchestrator([]string{
		`{"intention_type":"new_instruction","response_text":"built a box","execution_plan":{"id":"p1","script":"w = 10\nresult = box(w, w, w)","parameters":{"w":10}}}`,
	})
	_, err := store.Create("s1")
	require.NoError(t, err)

	resp, err := o.SubmitTurn(context.Background(), "s1", "make a cube")
	require.NoError(t, err)
	assert.Equal(t, "success", resp.MessageType)
	require.NotNil(t, resp.ExecutionResult)
	assert.Equal(t, model.StatusSuccess, resp.ExecutionResult.Status)
}

func TestSubmitTurnClarificationShortCircuits(t *testing.T) {
	o, store := newTestOrchestrator([]string{
		`{"intention_type":"new_instruction","response_text":"which edge?","requires_clarification":true,"clarification_questions":["top or bottom edge?"]}`,
	})
	_, _ = store.Create("s1")

	resp, err := o.SubmitTurn(context.Background(), "s1", "add a fillet")
	require.NoError(t, err)
	assert.True(t, resp.RequiresClarification)
	assert.Len(t, resp.ClarificationQuestions, 1)
}

func TestSubmitTurnFastPathParameterUpdate(t *testing.T) {
	o, store := newTestOrchestrator(nil)
	sess, _ := store.Create("s1")

	r := sess.Graph.AddParameter("radius", model.Number(5), nil, "mm", "")
	h := sess.Graph.AddParameter("height", model.Number(10), nil, "mm", "")
	_, err := sess.Graph.AddOperation("cyl", model.OpCylinder{}, map[string]pig.NodeRef{"radius": r, "height": h}, "")
	require.NoError(t, err)

	resp, err := o.SubmitTurn(context.Background(), "s1", "change the height to 40")
	require.NoError(t, err)
	assert.Equal(t, "success", resp.MessageType)
	require.NotNil(t, resp.ExecutionResult)
}

func TestSubmitTurnBusySessionRejected(t *testing.T) {
	o, store := newTestOrchestrator(nil)
	sess, _ := store.Create("s1")
	require.True(t, sess.TryAcquire())

	_, err := o.SubmitTurn(context.Background(), "s1", "anything")
	require.Error(t, err)
}

func TestSubmitTurnUnknownSessionFails(t *testing.T) {
	o, _ := newTestOrchestrator(nil)
	_, err := o.SubmitTurn(context.Background(), "missing", "anything")
	require.Error(t, err)
}
