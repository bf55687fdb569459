package cadeval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalScriptBox(t *testing.T) {
	res, err := EvalScript("cyl = box(10, 20, 5)\nresult = cyl")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, res.Volume, 1e-9)
	assert.Equal(t, [3]float64{-5, -10, -2.5}, res.BBox.Min)
	assert.Equal(t, [3]float64{5, 10, 2.5}, res.BBox.Max)
}

func TestEvalScriptCylinderFillet(t *testing.T) {
	res, err := EvalScript("cyl = cylinder(3, 10)\nfil = fillet(cyl, 1)\nresult = fil")
	require.NoError(t, err)
	assert.InDelta(t, 3.0, res.BBox.Max[0], 1e-9)
	assert.InDelta(t, 10.0, res.BBox.Max[2], 1e-9)
}

func TestEvalScriptUnionExpandsBBox(t *testing.T) {
	res, err := EvalScript("a = box(2, 2, 2)\nb = box(10, 1, 1)\nresult = union(a, b)")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res.BBox.Max[0], 1e-9)
	assert.InDelta(t, 1.0, res.BBox.Max[1], 1e-9)
}

func TestEvalScriptUnknownOperationFails(t *testing.T) {
	_, err := EvalScript("a = frobnicate(1, 2)\nresult = a")
	require.Error(t, err)
}

func TestEvalScriptMissingResultFails(t *testing.T) {
	_, err := EvalScript("a = box(1, 1, 1)")
	require.Error(t, err)
}

func TestEvalScriptResolvesNamedParameters(t *testing.T) {
	res, err := EvalScript("w = 10\nh = 5\nd = 2\nresult = box(w, h, d)")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, res.Volume, 1e-9)
}
