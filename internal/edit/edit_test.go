package edit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cadtalk/internal/dialog/memory"
	"github.com/smilemakc/cadtalk/internal/model"
	"github.com/smilemakc/cadtalk/internal/pig"
	"github.com/smilemakc/cadtalk/internal/sandbox"
)

func newTestManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.New()
	executor := sandbox.NewExecutor(sandbox.FixtureEvaluator{}, t.TempDir(), sandbox.ResourceLimits{})
	return New(store, executor), store
}

func seedCylinder(t *testing.T, store *memory.Store, sessionID string) {
	t.Helper()
	sess, err := store.Create(sessionID)
	require.NoError(t, err)
	r := sess.Graph.AddParameter("radius", model.Number(5), nil, "mm", "")
	h := sess.Graph.AddParameter("height", model.Number(10), nil, "mm", "")
	_, err = sess.Graph.AddOperation("cyl", model.OpCylinder{}, map[string]pig.NodeRef{"radius": r, "height": h}, "")
	require.NoError(t, err)
}

func TestDirectEditCheckspointsAndRegenerates(t *testing.T) {
	m, store := newTestManager(t)
	seedCylinder(t, store, "s1")

	result, err := m.DirectEdit(context.Background(), "s1", "cyl", "cyl = cylinder(radius, height)", true)
	require.NoError(t, err)
	assert.NotEmpty(t, result.CheckpointBefore)
	require.NotNil(t, result.Regeneration)
	assert.True(t, result.Regeneration.Success)

	history, err := m.EditHistory("s1")
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, pig.HistoryCheckpoint, history[0].Type)
}

func TestDirectEditInfersNewParameter(t *testing.T) {
	m, store := newTestManager(t)
	seedCylinder(t, store, "s1")

	result, err := m.DirectEdit(context.Background(), "s1", "cyl", "cyl = cylinder(radius, height + taper)", false)
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
}

func TestBatchParameterUpdateAppliesAllAndRegenerates(t *testing.T) {
	m, store := newTestManager(t)
	seedCylinder(t, store, "s1")

	result, err := m.BatchParameterUpdate(context.Background(), "s1", map[string]model.Value{
		"radius": model.Number(8),
		"height": model.Number(20),
	}, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"height", "radius"}, result.Updated)
	require.NotNil(t, result.Regeneration)
	assert.True(t, result.Regeneration.Success)
}

func TestCheckpointAndRollback(t *testing.T) {
	m, store := newTestManager(t)
	seedCylinder(t, store, "s1")

	checkpointID, err := m.Checkpoint("s1", "before risky change")
	require.NoError(t, err)
	require.NotEmpty(t, checkpointID)

	_, err = m.BatchParameterUpdate(context.Background(), "s1", map[string]model.Value{"radius": model.Number(99)}, false)
	require.NoError(t, err)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	ref, ok := sess.Graph.FindParameterByName("radius")
	require.True(t, ok)
	p, err := sess.Graph.Parameter(ref)
	require.NoError(t, err)
	assert.Equal(t, 99.0, p.Value.Num)

	_, err = m.Rollback(context.Background(), "s1", checkpointID)
	require.NoError(t, err)

	p, err = sess.Graph.Parameter(ref)
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.Value.Num)
}

func TestEditHistoryFormatsEachType(t *testing.T) {
	m, store := newTestManager(t)
	seedCylinder(t, store, "s1")

	_, err := m.Checkpoint("s1", "manual checkpoint")
	require.NoError(t, err)
	_, err = m.BatchParameterUpdate(context.Background(), "s1", map[string]model.Value{"radius": model.Number(6)}, false)
	require.NoError(t, err)
	_, err = m.DirectEdit(context.Background(), "s1", "cyl", "cyl = cylinder(radius, height)", false)
	require.NoError(t, err)

	history, err := m.EditHistory("s1")
	require.NoError(t, err)
	// manual checkpoint; BatchParameterUpdate's own pre-update checkpoint
	// + its parameter_update entry; DirectEdit's own pre-edit checkpoint
	// + its direct_edit entry.
	require.Len(t, history, 5)

	var sawCheckpoint, sawParamUpdate, sawDirectEdit bool
	for _, h := range history {
		switch h.Type {
		case pig.HistoryCheckpoint:
			sawCheckpoint = true
			assert.True(t, h.CanRollback)
		case pig.HistoryParameterUpdate:
			sawParamUpdate = true
			assert.False(t, h.CanRollback)
		case pig.HistoryDirectEdit:
			sawDirectEdit = true
			assert.False(t, h.CanRollback)
		}
	}
	assert.True(t, sawCheckpoint)
	assert.True(t, sawParamUpdate)
	assert.True(t, sawDirectEdit)
}

func TestValidateEditCatchesBadScriptAndBadParameter(t *testing.T) {
	m, store := newTestManager(t)
	seedCylinder(t, store, "s1")

	outcome, err := m.ValidateEdit("s1", "cyl = no_result_assignment_here", map[string]model.Value{
		"radius": model.String("not a number"),
	})
	require.NoError(t, err)
	assert.False(t, outcome.Valid)
	assert.NotEmpty(t, outcome.Errors)
}

func TestValidateEditDoesNotMutateGraph(t *testing.T) {
	m, store := newTestManager(t)
	seedCylinder(t, store, "s1")

	_, err := m.ValidateEdit("s1", "", map[string]model.Value{"radius": model.String("bad")})
	require.NoError(t, err)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	ref, _ := sess.Graph.FindParameterByName("radius")
	p, err := sess.Graph.Parameter(ref)
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.Value.Num)
}

func TestLoadPreviousSeedsOperationAndHistory(t *testing.T) {
	m, store := newTestManager(t)
	_, err := store.Create("s1")
	require.NoError(t, err)

	result, err := m.LoadPrevious("s1", "result = box(10, 10, 10)")
	require.NoError(t, err)
	assert.Equal(t, "result = box(10, 10, 10)", result.EditableCode)

	history, err := m.EditHistory("s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, pig.HistoryLoadPrevious, history[0].Type)
}
