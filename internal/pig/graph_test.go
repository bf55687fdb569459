package pig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cadtalk/internal/domainerr"
	"github.com/smilemakc/cadtalk/internal/model"
)

func TestAddParameterUpsertsByName(t *testing.T) {
	g := New()
	ref1 := g.AddParameter("Radius", model.Number(5), nil, "mm", "")
	ref2 := g.AddParameter("radius", model.Number(7), nil, "mm", "")

	assert.Equal(t, ref1, ref2, "same case-insensitive name must resolve to the same node")
	p, err := g.Parameter(ref1)
	require.NoError(t, err)
	assert.Equal(t, 7.0, p.Value.Num)
}

func TestAddOperationRejectsCycle(t *testing.T) {
	g := New()
	r := g.AddParameter("r", model.Number(3), nil, "", "")
	h := g.AddParameter("h", model.Number(10), nil, "", "")

	cyl, err := g.AddOperation("cyl", model.OpCylinder{}, map[string]NodeRef{"radius": r, "height": h}, "")
	require.NoError(t, err)

	// Rewiring cyl to depend on itself (via a self-referential input)
	// must be rejected rather than silently accepted.
	_, err = g.AddOperation("cyl", model.OpCylinder{}, map[string]NodeRef{"radius": cyl, "height": h}, "")
	require.Error(t, err)
	assert.True(t, domainerr.Is(err, domainerr.CodeCycleDetected))
}

func TestTopoOrderRespectsDependencies(t *testing.T) {
	g := New()
	r := g.AddParameter("r", model.Number(3), nil, "", "")
	h := g.AddParameter("h", model.Number(10), nil, "", "")
	cylRef, err := g.AddOperation("cyl", model.OpCylinder{}, map[string]NodeRef{"radius": r, "height": h}, "")
	require.NoError(t, err)

	fr := g.AddParameter("fillet_r", model.Number(1), nil, "", "")
	filletRef, err := g.AddOperation("fil", model.OpFillet{}, map[string]NodeRef{"target": cylRef, "radius": fr}, "")
	require.NoError(t, err)

	order, err := g.TopoOrder()
	require.NoError(t, err)

	pos := map[NodeRef]int{}
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos[r], pos[cylRef])
	assert.Less(t, pos[h], pos[cylRef])
	assert.Less(t, pos[cylRef], pos[filletRef])
	assert.Less(t, pos[fr], pos[filletRef])
}

func TestUpdateParameterReturnsAffectedClosure(t *testing.T) {
	g := New()
	r := g.AddParameter("r", model.Number(3), nil, "", "")
	h := g.AddParameter("h", model.Number(10), nil, "", "")
	cylRef, err := g.AddOperation("cyl", model.OpCylinder{}, map[string]NodeRef{"radius": r, "height": h}, "")
	require.NoError(t, err)

	fr := g.AddParameter("fillet_r", model.Number(1), nil, "", "")
	filletRef, err := g.AddOperation("fil", model.OpFillet{}, map[string]NodeRef{"target": cylRef, "radius": fr}, "")
	require.NoError(t, err)

	affected, err := g.UpdateParameter("r", model.Number(4))
	require.NoError(t, err)

	assert.Contains(t, affected, cylRef)
	assert.Contains(t, affected, filletRef)
	assert.NotContains(t, affected, fr)
	// cyl must precede fil in the returned closure.
	var cylPos, filPos int
	for i, n := range affected {
		if n == cylRef {
			cylPos = i
		}
		if n == filletRef {
			filPos = i
		}
	}
	assert.Less(t, cylPos, filPos)
}

func TestUpdateParameterRejectsOutOfBounds(t *testing.T) {
	g := New()
	min, max := 0.0, 100.0
	g.AddParameter("h", model.Number(10), &Bounds{Min: &min, Max: &max}, "mm", "")

	_, err := g.UpdateParameter("h", model.Number(200))
	require.Error(t, err)
	assert.True(t, domainerr.Is(err, domainerr.CodeOutOfBounds))
}

func TestUpdateParameterRejectsTypeMismatch(t *testing.T) {
	g := New()
	g.AddParameter("flag", model.Boolean(true), nil, "", "")

	_, err := g.UpdateParameter("flag", model.Number(1))
	require.Error(t, err)
	assert.True(t, domainerr.Is(err, domainerr.CodeTypeMismatch))
}

func TestCheckpointRollbackRoundTrip(t *testing.T) {
	g := New()
	g.AddParameter("r", model.Number(3), nil, "", "")
	g.CreateCheckpoint("cp1", "before change")

	_, err := g.UpdateParameter("r", model.Number(99))
	require.NoError(t, err)
	p, _ := g.Parameter(mustFind(t, g, "r"))
	assert.Equal(t, 99.0, p.Value.Num)

	require.NoError(t, g.RollbackToCheckpoint("cp1"))
	p, _ = g.Parameter(mustFind(t, g, "r"))
	assert.Equal(t, 3.0, p.Value.Num)
}

func TestRollbackUnknownCheckpointFails(t *testing.T) {
	g := New()
	g.AddParameter("r", model.Number(3), nil, "", "")
	err := g.RollbackToCheckpoint("does-not-exist")
	require.Error(t, err)
}

func TestHistoryCapsAtMaxEntries(t *testing.T) {
	g := New()
	g.AddParameter("r", model.Number(1), nil, "", "")
	for i := 0; i < maxHistoryEntries+20; i++ {
		_, err := g.UpdateParameter("r", model.Number(float64(i)))
		require.NoError(t, err)
	}
	assert.Len(t, g.History(), maxHistoryEntries)
}

func TestEditOperationScriptInfersParameters(t *testing.T) {
	g := New()
	cylRef, err := g.AddOperation("cyl", model.OpFreeScript{Script: "cyl = None"}, nil, "")
	require.NoError(t, err)

	affected, created, err := g.EditOperationScript("cyl", "cyl = cylinder(bore_radius, bore_depth)", true)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Empty(t, affected) // nothing downstream of cyl yet

	ops, err := g.Operations()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, cylRef, ops[0].Ref)
}

func TestEditOperationScriptRejectsEmptyScript(t *testing.T) {
	g := New()
	r := g.AddParameter("r", model.Number(1), nil, "", "")
	_, err := g.AddOperation("cyl", model.OpCylinder{}, map[string]NodeRef{"radius": r, "height": r}, "")
	require.NoError(t, err)

	before, err := g.Operations()
	require.NoError(t, err)

	_, _, err = g.EditOperationScript("cyl", "   ", false)
	require.Error(t, err)
	assert.True(t, domainerr.Is(err, domainerr.CodePlanInvalid))

	after, err := g.Operations()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func mustFind(t *testing.T, g *Graph, name string) NodeRef {
	t.Helper()
	ref, ok := g.FindParameterByName(name)
	require.True(t, ok)
	return ref
}
