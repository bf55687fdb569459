package pig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cadtalk/internal/model"
)

func TestRenderScriptProducesTopoOrderedLines(t *testing.T) {
	g := New()
	r := g.AddParameter("radius", model.Number(10), nil, "mm", "")
	h := g.AddParameter("height", model.Number(20), nil, "mm", "")
	_, err := g.AddOperation("cyl", model.OpCylinder{}, map[string]NodeRef{"radius": r, "height": h}, "")
	require.NoError(t, err)

	params, opLines, topLevel, err := g.RenderScript()
	require.NoError(t, err)
	assert.Len(t, params, 2)
	require.Len(t, opLines, 1)
	assert.Contains(t, opLines[0], "cylinder(")
	assert.Equal(t, []string{"cyl"}, topLevel)
}

func TestRenderSubsetIncludesOnlyAffectedAncestors(t *testing.T) {
	g := New()
	r := g.AddParameter("radius", model.Number(10), nil, "mm", "")
	h := g.AddParameter("height", model.Number(20), nil, "mm", "")
	cyl, err := g.AddOperation("cyl", model.OpCylinder{}, map[string]NodeRef{"radius": r, "height": h}, "")
	require.NoError(t, err)
	w := g.AddParameter("w", model.Number(5), nil, "mm", "")
	box, err := g.AddOperation("bx", model.OpBox{}, map[string]NodeRef{"width": w, "height": w, "depth": w}, "")
	require.NoError(t, err)
	_ = box

	params, opLines, topLevel, err := g.RenderSubset([]NodeRef{cyl})
	require.NoError(t, err)
	assert.Len(t, params, 2)
	require.Len(t, opLines, 1)
	assert.Equal(t, []string{"cyl"}, topLevel)
}
