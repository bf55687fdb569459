package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMetaCommand(t *testing.T) {
	assert.Equal(t, KindMetaCommand, Classify("undo that last change"))
	assert.Equal(t, KindMetaCommand, Classify("please checkpoint the model"))
}

func TestClassifyQuestion(t *testing.T) {
	assert.Equal(t, KindQuestion, Classify("what is the current radius?"))
	assert.Equal(t, KindQuestion, Classify("how tall is the cylinder"))
}

func TestClassifyModification(t *testing.T) {
	assert.Equal(t, KindModification, Classify("change the height to 50"))
	assert.Equal(t, KindModification, Classify("make it bigger"))
}

func TestClassifyNewInstructionDefault(t *testing.T) {
	assert.Equal(t, KindNewInstruction, Classify("create a flange with a central hole"))
}

func TestClassifyPriorityMetaOverQuestion(t *testing.T) {
	// "show me the history" matches both the meta history pattern and
	// could plausibly read as a question; meta must win.
	assert.Equal(t, KindMetaCommand, Classify("show me the history"))
}

func TestExtractModificationContext(t *testing.T) {
	ctx := ExtractModificationContext("change the height to 75.5")
	assert.Equal(t, "height", ctx.Parameter)
	assert.True(t, ctx.HasValue)
	assert.InDelta(t, 75.5, ctx.Value, 0.001)
}

func TestExtractModificationContextNoValue(t *testing.T) {
	ctx := ExtractModificationContext("make the radius bigger")
	assert.Equal(t, "radius", ctx.Parameter)
	assert.False(t, ctx.HasValue)
}

func TestExtractCreationContext(t *testing.T) {
	ctx := ExtractCreationContext("create a cylinder with radius of 12 and height of 40")
	assert.Equal(t, "cylinder", ctx.Geometry)
	assert.InDelta(t, 12.0, ctx.Dimensions["radius"], 0.001)
	assert.InDelta(t, 40.0, ctx.Dimensions["height"], 0.001)
}

func TestExtractCreationContextCubeAliasesBox(t *testing.T) {
	ctx := ExtractCreationContext("make a cube")
	assert.Equal(t, "box", ctx.Geometry)
}
