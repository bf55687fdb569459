package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smilemakc/cadtalk/internal/domainerr"
	"github.com/smilemakc/cadtalk/internal/model"
)

// Planner generates and validates Plans from natural-language requests,
// wrapping an injected LLMBackend (the REDESIGN FLAG replacing the
// source's module-level LLM client singleton). MaxRetries is not read by
// this package; the self-correction loop lives in the Orchestrator and
// is bounded by Orchestrator.MaxRetries.
type Planner struct {
	Backend      LLMBackend
	ResponsesDir string
	MaxRetries   int
}

// New builds a Planner. responsesDir may be empty to disable
// interaction persistence.
func New(backend LLMBackend, responsesDir string) *Planner {
	return &Planner{Backend: backend, ResponsesDir: responsesDir, MaxRetries: 2}
}

// Generate runs one request through the backend and returns the parsed,
// salvaged response. It never itself decides whether the resulting plan
// is valid — call ValidatePlan on the result's ExecutionPlan.
func (p *Planner) Generate(ctx context.Context, request string, history []Turn, state ModelState) (model.LLMResponse, error) {
	prompt := BuildPrompt(request, history, state)
	return p.call(ctx, "new_instruction", prompt)
}

// GenerateCorrection re-prompts the backend with the failing script and
// error, for the self-correction loop.
func (p *Planner) GenerateCorrection(ctx context.Context, originalScript, errorMessage, traceback string) (model.LLMResponse, error) {
	prompt := BuildCorrectionPrompt(originalScript, errorMessage, traceback)
	return p.call(ctx, "error_correction", prompt)
}

func (p *Planner) call(ctx context.Context, promptContext, prompt string) (model.LLMResponse, error) {
	raw, err := p.Backend.Call(ctx, prompt)
	if err != nil {
		return model.LLMResponse{}, domainerr.LLMUnavailable(err)
	}

	p.persist(promptContext, prompt, raw)

	cleaned := SalvageJSON(raw)
	var resp struct {
		IntentionType          string          `json:"intention_type"`
		ResponseText           string          `json:"response_text"`
		ExecutionPlan          *planJSON       `json:"execution_plan"`
		ParameterUpdates       map[string]any  `json:"parameter_updates"`
		Confidence             *float64        `json:"confidence"`
		RequiresClarification  bool            `json:"requires_clarification"`
		ClarificationQuestions []string        `json:"clarification_questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return model.LLMResponse{}, domainerr.LLMMalformed(fmt.Sprintf("could not parse salvaged JSON: %v", err))
	}
	if resp.IntentionType == "" || resp.ResponseText == "" {
		return model.LLMResponse{}, domainerr.LLMMalformed("response missing required fields intention_type/response_text")
	}

	out := model.LLMResponse{
		IntentionType:          resp.IntentionType,
		ResponseText:           resp.ResponseText,
		ParameterUpdates:       resp.ParameterUpdates,
		Confidence:             resp.Confidence,
		RequiresClarification:  resp.RequiresClarification,
		ClarificationQuestions: resp.ClarificationQuestions,
	}
	if resp.ExecutionPlan != nil {
		plan := resp.ExecutionPlan.toPlan()
		out.ExecutionPlan = &plan
	}
	return out, nil
}

// planJSON mirrors the "execution_plan" object of the response schema.
type planJSON struct {
	ID            string           `json:"id"`
	Description   string           `json:"description"`
	Script        string           `json:"script"`
	ASTNodes      []astNodeJSON    `json:"ast_nodes"`
	Parameters    map[string]any   `json:"parameters"`
	NewParameters map[string]any   `json:"new_parameters"`
}

type astNodeJSON struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Operation  string         `json:"operation"`
	Parameters map[string]any `json:"parameters"`
	Children   []string       `json:"children"`
}

func (pj *planJSON) toPlan() model.Plan {
	nodes := make([]model.ASTNode, 0, len(pj.ASTNodes))
	for _, n := range pj.ASTNodes {
		nodes = append(nodes, model.ASTNode{
			ID:         n.ID,
			Kind:       n.Kind,
			Operation:  n.Operation,
			Parameters: n.Parameters,
			Children:   n.Children,
		})
	}
	return model.Plan{
		ID:            pj.ID,
		Description:   pj.Description,
		Script:        pj.Script,
		ASTNodes:      nodes,
		Parameters:    pj.Parameters,
		NewParameters: pj.NewParameters,
	}
}

// persist writes the prompt/response pair to ResponsesDir, field for
// field matching _save_llm_interaction's JSON shape. Failures to
// persist never fail the call — this is an audit convenience, not a
// correctness dependency.
func (p *Planner) persist(promptContext, prompt, response string) {
	if p.ResponsesDir == "" {
		return
	}
	if err := os.MkdirAll(p.ResponsesDir, 0o755); err != nil {
		return
	}

	ts := time.Now()
	rec := model.PersistedInteraction{
		Timestamp:      ts,
		Context:        promptContext,
		LLMProvider:    p.Backend.Name(),
		Model:          p.Backend.Name(),
		Prompt:         prompt,
		Response:       response,
		PromptLength:   len(prompt),
		ResponseLength: len(response),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	name := fmt.Sprintf("%s_%s_%s.json", ts.Format("20060102_150405"), promptContext, p.Backend.Name())
	_ = os.WriteFile(filepath.Join(p.ResponsesDir, name), data, 0o644)
}
