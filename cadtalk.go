// Package cadtalk is the public facade over the conversational CAD
// engine: it wires dialog.SessionStore, planner.Planner, the
// orchestrator.Orchestrator turn pipeline, and the edit.Manager direct-
// edit surface behind a single Engine, the way mbflow.go's Workflow
// facade wired the node-executor engine behind one package entry
// point.
package cadtalk

import (
	"context"
	"fmt"
	"time"

	"github.com/smilemakc/cadtalk/internal/config"
	"github.com/smilemakc/cadtalk/internal/dialog"
	"github.com/smilemakc/cadtalk/internal/dialog/bunstore"
	"github.com/smilemakc/cadtalk/internal/dialog/memory"
	"github.com/smilemakc/cadtalk/internal/edit"
	"github.com/smilemakc/cadtalk/internal/model"
	"github.com/smilemakc/cadtalk/internal/orchestrator"
	"github.com/smilemakc/cadtalk/internal/pig"
	"github.com/smilemakc/cadtalk/internal/planner"
	"github.com/smilemakc/cadtalk/internal/sandbox"
)

// Type aliases re-exporting the internal vocabulary at the package
// root, the same pattern mbflow.go used for NodeConfig/WorkflowMetrics.
type (
	SessionID        = string
	CheckpointID     = string
	Value            = model.Value
	ParameterView    = pig.ParameterView
	OperationView    = pig.OperationView
	HistoryEntryView = edit.HistoryEntry
	ValidationReport = edit.ValidationOutcome
)

// GeometrySelection names the geometry a turn's utterance refers to,
// carried through submit_turn(session, text, selected_geometry?,
// model_choice?). There is no edge/face picking subsystem behind this:
// it is a caller-supplied hint, folded into the prompt context the
// Planner sees, not a spatial index cadtalk resolves itself.
type GeometrySelection struct {
	// OperationNames lists the operations (by graph name) the user's
	// selection covers, most specific first. SubmitTurn does not read it.
	OperationNames []string
	// Description is a free-text hint ("the top face", "the fillet
	// edges") forwarded verbatim into the LLM prompt when set.
	Description string
}

// TurnResult is what SubmitTurn returns for one turn: the pipeline
// Response plus the model choice actually used to plan it, if any.
type TurnResult struct {
	orchestrator.Response
	ModelUsed string
}

// SessionView is a read-only snapshot of a session's current state.
type SessionView struct {
	ID         SessionID
	CreatedAt  time.Time
	Parameters []ParameterView
	Operations []OperationView
	History    []dialog.Turn
}

// UpdateResult is what UpdateParameter returns: the single parameter
// update folded through edit.Manager.BatchParameterUpdate.
type UpdateResult struct {
	Affected     []pig.NodeRef
	Regeneration *edit.RegenerationResult
}

// EditResult unifies the result shapes of LoadPrevious, DirectEdit,
// BatchParameterUpdate and Rollback. Only the fields relevant to the
// call that produced it are populated; the rest stay at their zero
// value, matching how each of edit.Manager's own result structs only
// carries the fields that operation produces.
type EditResult struct {
	Affected         []pig.NodeRef
	Created          []pig.NodeRef
	Updated          []string
	CheckpointBefore CheckpointID
	EditableCode     string
	Parameters       []ParameterView
	Operations       []OperationView
	VersionCount     int
	Regeneration     *edit.RegenerationResult
}

// Engine is the top-level entry point: one per process, shared across
// every session it serves.
type Engine struct {
	Sessions     dialog.SessionStore
	Orchestrator *orchestrator.Orchestrator
	Edit         *edit.Manager
}

// New builds an Engine from Config: it selects a Postgres-backed
// SessionStore when DatabaseDSN is set and an in-memory one otherwise,
// an LLM backend per LLMProvider (wrapped in a circuit breaker; only
// the planned path calls it, the fast path never does), and a
// real SubprocessEvaluator when EvaluatorBinary is set or the
// in-process analytical FixtureEvaluator otherwise so the engine never
// requires a real CAD toolchain just to run.
func New(cfg *config.Config) (*Engine, error) {
	sessions, err := newSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	backend := newLLMBackend(cfg)
	p := planner.New(backend, cfg.LLMResponsesDir)

	evaluator := newEvaluator(cfg)
	limits := sandbox.ResourceLimits{
		Timeout:        cfg.MaxExecutionTime,
		MaxMemoryBytes: int64(cfg.MaxMemoryMB) * 1024 * 1024,
	}
	executor := sandbox.NewExecutor(evaluator, cfg.ScriptsDir, limits)

	return &Engine{
		Sessions:     sessions,
		Orchestrator: orchestrator.New(sessions, p, executor),
		Edit:         edit.New(sessions, executor),
	}, nil
}

func newSessionStore(cfg *config.Config) (dialog.SessionStore, error) {
	if cfg.DatabaseDSN == "" {
		return memory.New(), nil
	}
	store := bunstore.New(cfg.DatabaseDSN)
	if err := store.InitSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("cadtalk: init session schema: %w", err)
	}
	return store, nil
}

func newLLMBackend(cfg *config.Config) planner.LLMBackend {
	var backend planner.LLMBackend
	switch cfg.LLMProvider {
	case "ollama":
		backend = planner.NewOllamaBackend(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout)
	case "openai":
		backend = planner.NewOpenAIBackend(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	default:
		backend = &planner.FixtureBackend{Default: `{"response_text": "no LLM configured", "intention_type": "error"}`}
	}
	return planner.WithCircuitBreaker(backend, planner.DefaultCircuitBreakerConfig())
}

func newEvaluator(cfg *config.Config) sandbox.Evaluator {
	if cfg.EvaluatorBinary == "" {
		return sandbox.FixtureEvaluator{}
	}
	return sandbox.SubprocessEvaluator{Binary: cfg.EvaluatorBinary}
}

// StartSession creates a fresh, empty session.
func (e *Engine) StartSession(ctx context.Context, id SessionID) (SessionID, error) {
	if _, err := e.Orchestrator.StartSession(id); err != nil {
		return "", err
	}
	return id, nil
}

// SubmitTurn routes one utterance through the full turn pipeline.
// selected, when non-nil with a non-empty Description, has that
// Description folded into the prompt as a geometry hint (OperationNames
// is not used); modelChoice is recorded on the result but does not hot-swap
// the Engine's configured LLM backend mid-session — switching backends
// per turn is future work, noted in the design ledger.
func (e *Engine) SubmitTurn(ctx context.Context, id SessionID, text string, selected *GeometrySelection, modelChoice string) (*TurnResult, error) {
	if selected != nil && selected.Description != "" {
		text = fmt.Sprintf("%s\n[regarding: %s]", text, selected.Description)
	}
	resp, err := e.Orchestrator.SubmitTurn(ctx, id, text)
	if err != nil {
		return nil, err
	}
	return &TurnResult{Response: resp, ModelUsed: modelChoice}, nil
}

// GetSession returns a read-only snapshot of a session's parameters,
// operations and turn history.
func (e *Engine) GetSession(ctx context.Context, id SessionID) (*SessionView, error) {
	sess, err := e.Sessions.Get(id)
	if err != nil {
		return nil, err
	}
	ops, err := sess.Graph.Operations()
	if err != nil {
		return nil, err
	}
	return &SessionView{
		ID:         sess.ID,
		CreatedAt:  sess.CreatedAt,
		Parameters: sess.Graph.Parameters(),
		Operations: ops,
		History:    sess.RecentHistory(50),
	}, nil
}

// GetParameters lists a session's current parameters.
func (e *Engine) GetParameters(ctx context.Context, id SessionID) ([]ParameterView, error) {
	sess, err := e.Sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Graph.Parameters(), nil
}

// GetOperations lists a session's current operations, each rendered to
// its current script form.
func (e *Engine) GetOperations(ctx context.Context, id SessionID) ([]OperationView, error) {
	sess, err := e.Sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Graph.Operations()
}

// UpdateParameter updates a single named parameter and regenerates the
// affected subgraph, the single-value convenience form of
// BatchParameterUpdate.
func (e *Engine) UpdateParameter(ctx context.Context, id SessionID, name string, value Value) (*UpdateResult, error) {
	res, err := e.Edit.BatchParameterUpdate(ctx, id, map[string]Value{name: value}, true)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Affected: res.Affected, Regeneration: res.Regeneration}, nil
}

// LoadPrevious seeds a session from a previously saved script.
func (e *Engine) LoadPrevious(ctx context.Context, id SessionID, script string) (*EditResult, error) {
	res, err := e.Edit.LoadPrevious(id, script)
	if err != nil {
		return nil, err
	}
	return &EditResult{
		EditableCode: res.EditableCode,
		Parameters:   res.Parameters,
		Operations:   res.Operations,
		VersionCount: res.VersionCount,
	}, nil
}

// DirectEdit replaces one operation's script and, when autoRegenerate
// is set, re-renders and re-executes the whole model.
func (e *Engine) DirectEdit(ctx context.Context, id SessionID, operationName, newScript string, autoRegenerate bool) (*EditResult, error) {
	res, err := e.Edit.DirectEdit(ctx, id, operationName, newScript, autoRegenerate)
	if err != nil {
		return nil, err
	}
	return &EditResult{
		Affected:         res.Affected,
		Created:          res.Created,
		CheckpointBefore: res.CheckpointBefore,
		Regeneration:     res.Regeneration,
	}, nil
}

// BatchParameterUpdate checkpoints the graph, applies the updates in
// name order, then regenerates if autoRegenerate is set. It is not
// atomic: it stops at the first failing update and returns that error,
// leaving the updates applied before it in place.
func (e *Engine) BatchParameterUpdate(ctx context.Context, id SessionID, updates map[string]Value, autoRegenerate bool) (*EditResult, error) {
	res, err := e.Edit.BatchParameterUpdate(ctx, id, updates, autoRegenerate)
	if err != nil {
		return nil, err
	}
	return &EditResult{
		Updated:          res.Updated,
		Affected:         res.Affected,
		CheckpointBefore: res.CheckpointBefore,
		Regeneration:     res.Regeneration,
	}, nil
}

// Checkpoint snapshots the session's graph under description and
// returns the new checkpoint's ID.
func (e *Engine) Checkpoint(ctx context.Context, id SessionID, description string) (CheckpointID, error) {
	return e.Edit.Checkpoint(id, description)
}

// Rollback restores the graph to a prior checkpoint and regenerates
// the whole graph.
func (e *Engine) Rollback(ctx context.Context, id SessionID, checkpoint CheckpointID) (*EditResult, error) {
	res, err := e.Edit.Rollback(ctx, id, checkpoint)
	if err != nil {
		return nil, err
	}
	return &EditResult{Regeneration: &res.Regeneration}, nil
}

// EditHistory lists a session's full edit history, most recent last.
func (e *Engine) EditHistory(ctx context.Context, id SessionID) ([]HistoryEntryView, error) {
	return e.Edit.EditHistory(id)
}

// ValidateEdit dry-runs a prospective script and/or parameter update
// against a scratch copy of the session's graph without mutating it.
func (e *Engine) ValidateEdit(ctx context.Context, id SessionID, script *string, params map[string]Value) (*ValidationReport, error) {
	editedScript := ""
	if script != nil {
		editedScript = *script
	}
	outcome, err := e.Edit.ValidateEdit(id, editedScript, params)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}
