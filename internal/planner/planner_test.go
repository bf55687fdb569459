package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/cadtalk/internal/model"
)

func TestSalvageJSONDirectParse(t *testing.T) {
	raw := `{"intention_type":"question","response_text":"hi","execution_plan":null,"parameter_updates":null,"confidence":0.5,"requires_clarification":false,"clarification_questions":[]}`
	assert.Equal(t, raw, SalvageJSON(raw))
}

func TestSalvageJSONStripsFences(t *testing.T) {
	raw := "```json\n{\"intention_type\":\"question\",\"response_text\":\"hi\"}\n```"
	got := SalvageJSON(raw)
	assert.Contains(t, got, `"intention_type":"question"`)
}

func TestSalvageJSONBalancedScanWithPreamble(t *testing.T) {
	raw := "Sure, here you go:\n{\"intention_type\":\"question\", \"response_text\": \"ok {nested}\"}\nhope that helps"
	got := SalvageJSON(raw)
	assert.Contains(t, got, `"response_text": "ok {nested}"`)
}

func TestSalvageJSONSynthesizesOnGarbage(t *testing.T) {
	got := SalvageJSON("not json at all")
	assert.Contains(t, got, `"intention_type":"error"`)
}

func TestPlannerGenerateParsesExecutionPlan(t *testing.T) {
	backend := &FixtureBackend{
		Responses: []string{`{"intention_type":"new_instruction","response_text":"built it","execution_plan":{"id":"p1","description":"a box","script":"w = 10\nresult = box(w, w, w)","parameters":{"w":10}},"parameter_updates":null,"confidence":0.9,"requires_clarification":false,"clarification_questions":[]}`},
	}
	p := New(backend, "")

	resp, err := p.Generate(context.Background(), "make a cube", nil, ModelState{})
	require.NoError(t, err)
	assert.Equal(t, "new_instruction", resp.IntentionType)
	require.NotNil(t, resp.ExecutionPlan)
	assert.Equal(t, "p1", resp.ExecutionPlan.ID)
	assert.Contains(t, resp.ExecutionPlan.Script, "box(w, w, w)")
}

func TestPlannerGenerateRejectsMissingFields(t *testing.T) {
	backend := &FixtureBackend{Responses: []string{`{"foo":"bar"}`}}
	p := New(backend, "")

	_, err := p.Generate(context.Background(), "make a cube", nil, ModelState{})
	require.Error(t, err)
}

func TestValidatePlanScriptRequiresResult(t *testing.T) {
	res := ValidatePlan(model.Plan{ID: "p1", Script: "w = 10\nbox(w, w, w)"})
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
}

func TestValidatePlanASTChecksRequiredInputs(t *testing.T) {
	res := ValidatePlan(model.Plan{
		ID: "p1",
		ASTNodes: []model.ASTNode{
			{ID: "n1", Operation: "cylinder", Parameters: map[string]any{"radius": 3.0}},
		},
	})
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "height")
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	backend := &failingBackend{}
	cb := WithCircuitBreaker(backend, CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: 0})

	_, err1 := cb.Call(context.Background(), "x")
	_, err2 := cb.Call(context.Background(), "x")
	require.Error(t, err1)
	require.Error(t, err2)

	// Third call: circuit should now be open, Timeout=0 means it
	// immediately transitions to half-open and probes again (still
	// fails), reopening. Either way this must not panic and must
	// return an error.
	_, err3 := cb.Call(context.Background(), "x")
	require.Error(t, err3)
	assert.Equal(t, 3, backend.calls)
}

type failingBackend struct{ calls int }

func (f *failingBackend) Call(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return "", assertError{}
}
func (f *failingBackend) Name() string { return "failing" }

type assertError struct{}

func (assertError) Error() string { return "boom" }
