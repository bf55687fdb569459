// Package orchestrator is the turn state machine — "O Maestro" of
// original_source/src/core/orchestrator.py's CentralOrchestrator: it
// never executes CAD work itself, only routes a turn through the
// Intention Resolver, the fast parameter-update path, the Planner, and
// the Sandboxed Executor, in that order, and absorbs the result back
// into the PIG graph.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/smilemakc/cadtalk/internal/dialog"
	"github.com/smilemakc/cadtalk/internal/domainerr"
	"github.com/smilemakc/cadtalk/internal/intent"
	"github.com/smilemakc/cadtalk/internal/model"
	"github.com/smilemakc/cadtalk/internal/pig"
	"github.com/smilemakc/cadtalk/internal/planner"
	"github.com/smilemakc/cadtalk/internal/sandbox"
)

// TurnState names the stage a turn is in, purely for logging/inspection
// — SubmitTurn runs them in this fixed order and never parks a turn
// mid-state across calls.
type TurnState string

const (
	StateReceived   TurnState = "received"
	StateResolving  TurnState = "resolving"
	StateFastPath   TurnState = "fast_path"
	StatePlanning   TurnState = "planning"
	StateExecuting  TurnState = "executing"
	StateCorrecting TurnState = "correcting"
	StateAbsorbing  TurnState = "absorbing"
	StateResponding TurnState = "responding"
	StateDone       TurnState = "done"
)

// Response is what SubmitTurn returns for one turn.
type Response struct {
	Content                string
	MessageType            string // "info" | "success" | "error"
	ExecutionResult        *model.ExecutionResult
	RequiresClarification  bool
	ClarificationQuestions []string
	FinalState             TurnState
}

// Orchestrator wires the Intention Resolver, Planner and Executor
// together over a SessionStore, mirroring CentralOrchestrator's
// constructor wiring of DialogManager/PlanningModule/SandboxedExecutor/
// PIGManager.
type Orchestrator struct {
	Sessions   dialog.SessionStore
	Planner    *planner.Planner
	Executor   *sandbox.Executor
	MaxRetries int // self-correction attempts, default 2 (_execute_plan_with_retry's max_retries)
}

// New builds an Orchestrator. MaxRetries defaults to 2.
func New(sessions dialog.SessionStore, p *planner.Planner, executor *sandbox.Executor) *Orchestrator {
	return &Orchestrator{Sessions: sessions, Planner: p, Executor: executor, MaxRetries: 2}
}

// StartSession creates a fresh session with an empty PIG graph.
func (o *Orchestrator) StartSession(id string) (*dialog.Session, error) {
	return o.Sessions.Create(id)
}

// SubmitTurn runs one user message through the full pipeline: busy
// guard, intention classification, fast-path parameter update (when
// the intention is a modification and names a known parameter), else
// the Planner/Executor path with the bounded self-correction loop.
// AbsorbPlan is only ever called after a successful execution — the
// REDESIGN FLAG deviation from _process_with_llm, which calls
// update_from_execution_plan unconditionally and would let a failed
// plan's operations leak into the graph.
func (o *Orchestrator) SubmitTurn(ctx context.Context, sessionID, userMessage string) (Response, error) {
	sess, err := o.Sessions.Get(sessionID)
	if err != nil {
		return Response{}, err
	}
	if !sess.TryAcquire() {
		return Response{Content: "session is busy processing a previous turn", MessageType: "error", FinalState: StateReceived}, domainerr.Busy(sessionID)
	}
	defer sess.Release()

	kind := intent.Classify(userMessage)

	if kind == intent.KindModification {
		resp, handled, err := o.tryFastPath(ctx, sess, userMessage)
		if err != nil {
			return Response{}, err
		}
		if handled {
			sess.AppendTurn(dialog.Turn{UserMessage: userMessage, ResponseText: resp.Content, Timestamp: time.Now()})
			return resp, nil
		}
	}

	resp, err := o.processWithPlanner(ctx, sess, userMessage)
	if err != nil {
		return Response{}, err
	}
	sess.AppendTurn(dialog.Turn{UserMessage: userMessage, ResponseText: resp.Content, Timestamp: time.Now()})
	return resp, nil
}

// tryFastPath mirrors _try_parameter_update: extract a parameter/value
// pair, look it up by name, update it, and re-run only the affected
// subgraph. Returns handled=false (never an error) whenever the
// heuristic can't resolve the message, so the caller falls through to
// the Planner path, matching the source's "return None" fallback.
func (o *Orchestrator) tryFastPath(ctx context.Context, sess *dialog.Session, userMessage string) (Response, bool, error) {
	mod := intent.ExtractModificationContext(userMessage)
	if mod.Parameter == "" || !mod.HasValue {
		return Response{}, false, nil
	}

	if _, ok := sess.Graph.FindParameterByName(mod.Parameter); !ok {
		return Response{}, false, nil
	}

	affected, err := sess.Graph.UpdateParameter(mod.Parameter, model.Number(mod.Value))
	if err != nil {
		// Out-of-bounds or type-mismatch updates fall through to the
		// Planner rather than surfacing the raw domain error, matching
		// _try_parameter_update's broad except-and-return-None.
		return Response{}, false, nil
	}

	if len(affected) == 0 {
		return Response{
			Content:     fmt.Sprintf("parameter %q updated to %v; nothing downstream to regenerate", mod.Parameter, mod.Value),
			MessageType: "success",
			FinalState:  StateDone,
		}, true, nil
	}

	params, opLines, topLevel, err := sess.Graph.RenderSubset(affected)
	if err != nil || len(topLevel) == 0 {
		return Response{}, false, nil
	}

	result, err := o.execute(ctx, sess, params, opLines, topLevel, "fast_path")
	if err != nil {
		return Response{}, false, nil
	}
	if result.Status != model.StatusSuccess {
		return Response{}, false, nil
	}

	sess.SetLastScript(result.Script)
	return Response{
		Content:         fmt.Sprintf("parameter %q updated to %v. Model regenerated.", mod.Parameter, mod.Value),
		MessageType:     "success",
		ExecutionResult: &result,
		FinalState:      StateDone,
	}, true, nil
}

// processWithPlanner mirrors _process_with_llm: build the prompt
// context from session state, call the Planner, and either return a
// clarification response, an informative-only response, or execute the
// returned plan with the bounded self-correction loop.
func (o *Orchestrator) processWithPlanner(ctx context.Context, sess *dialog.Session, userMessage string) (Response, error) {
	history := toPlannerTurns(sess.RecentHistory(5))
	state := sessionModelState(sess)

	llmResp, err := o.Planner.Generate(ctx, userMessage, history, state)
	if err != nil {
		return Response{}, err
	}

	if llmResp.RequiresClarification {
		return Response{
			Content:                llmResp.ResponseText,
			MessageType:            "info",
			RequiresClarification:  true,
			ClarificationQuestions: llmResp.ClarificationQuestions,
			FinalState:             StateResponding,
		}, nil
	}

	if llmResp.ExecutionPlan == nil {
		return Response{Content: llmResp.ResponseText, MessageType: "info", FinalState: StateResponding}, nil
	}

	result, plan, err := o.executePlanWithRetry(ctx, sess, *llmResp.ExecutionPlan)
	if err != nil {
		return Response{}, err
	}

	if result.Status != model.StatusSuccess {
		return Response{
			Content:     fmt.Sprintf("execution failed: %s", result.Error),
			MessageType: "error",
			FinalState:  StateDone,
		}, nil
	}

	if err := sess.Graph.AbsorbPlan(plan); err != nil {
		return Response{}, err
	}
	sess.SetLastScript(result.Script)

	return Response{
		Content:         llmResp.ResponseText,
		MessageType:     "success",
		ExecutionResult: &result,
		FinalState:      StateDone,
	}, nil
}

// executePlanWithRetry mirrors _execute_plan_with_retry: run the plan,
// and on failure re-prompt the Planner for a correction up to
// MaxRetries times, swapping in the corrected plan each round. It
// returns the last attempted plan alongside the result so the caller
// can absorb exactly the plan that actually produced a successful
// result.
func (o *Orchestrator) executePlanWithRetry(ctx context.Context, sess *dialog.Session, plan model.Plan) (model.ExecutionResult, model.Plan, error) {
	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		result, err := o.runPlan(ctx, sess, plan)
		if err != nil {
			return model.ExecutionResult{}, plan, err
		}
		if result.Status == model.StatusSuccess {
			return result, plan, nil
		}
		if attempt == o.MaxRetries {
			return result, plan, nil
		}

		corrected, err := o.Planner.GenerateCorrection(ctx, plan.Script, result.Error, result.Traceback)
		if err != nil || corrected.ExecutionPlan == nil {
			return result, plan, nil
		}
		plan = *corrected.ExecutionPlan
	}
	// Unreachable: the loop above always returns by attempt == MaxRetries.
	return model.ExecutionResult{}, plan, nil
}

func (o *Orchestrator) runPlan(ctx context.Context, sess *dialog.Session, plan model.Plan) (model.ExecutionResult, error) {
	if plan.HasScript() {
		return o.Executor.Run(ctx, plan.Script, sandbox.Command{SessionID: sess.ID, PlanID: plan.ID, Context: "plan"}, sandbox.ResourceLimits{})
	}

	// AST-form plan: stage it into a scratch graph copy so rendering
	// doesn't mutate the session's committed graph before execution
	// succeeds, then render and run exactly like a script-form plan.
	scratch := sess.Graph.Snapshot()
	staged := pig.New()
	staged.Restore(scratch)
	if err := staged.AbsorbPlan(plan); err != nil {
		return model.ExecutionResult{}, err
	}
	params, opLines, topLevel, err := staged.RenderScript()
	if err != nil {
		return model.ExecutionResult{}, err
	}
	return o.execute(ctx, sess, params, opLines, topLevel, "plan")
}

func (o *Orchestrator) execute(ctx context.Context, sess *dialog.Session, params []pig.ParamDecl, opLines []string, topLevel []string, context string) (model.ExecutionResult, error) {
	sandboxParams := make([]sandbox.ParamLine, len(params))
	for i, p := range params {
		sandboxParams[i] = sandbox.ParamLine{Name: p.Name, Literal: p.Literal}
	}
	script, err := sandbox.AssembleScript(sandboxParams, opLines, topLevel)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	return o.Executor.Run(ctx, script, sandbox.Command{SessionID: sess.ID, Context: context}, sandbox.ResourceLimits{})
}

func toPlannerTurns(turns []dialog.Turn) []planner.Turn {
	out := make([]planner.Turn, len(turns))
	for i, t := range turns {
		out[i] = planner.Turn{UserMessage: t.UserMessage, ResponseText: t.ResponseText}
	}
	return out
}

func sessionModelState(sess *dialog.Session) planner.ModelState {
	params := sess.Graph.Parameters()
	ops, err := sess.Graph.Operations()
	if err != nil {
		ops = nil
	}

	state := planner.ModelState{
		Parameters: make([]planner.ParamSummary, len(params)),
		Operations: make([]planner.OpSummary, len(ops)),
	}
	for i, p := range params {
		state.Parameters[i] = planner.ParamSummary{Name: p.Name, Literal: p.Value.Literal(), Units: p.Units}
	}
	for i, op := range ops {
		state.Operations[i] = planner.OpSummary{Name: op.Name, Kind: op.Kind}
	}
	return state
}
