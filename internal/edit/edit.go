// Package edit is the Edit Manager — a thin, unified API surface over
// the PIG Manager's editing primitives and the Sandboxed Executor,
// grounded on original_source/src/core/edit_manager.py's EditManager:
// every exported method here corresponds to one of its public methods,
// in the same order.
package edit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/cadtalk/internal/dialog"
	"github.com/smilemakc/cadtalk/internal/model"
	"github.com/smilemakc/cadtalk/internal/pig"
	"github.com/smilemakc/cadtalk/internal/planner"
	"github.com/smilemakc/cadtalk/internal/sandbox"
)

// Manager is the Edit Manager, constructed with the same two
// collaborators EditManager.__init__ takes.
type Manager struct {
	Sessions dialog.SessionStore
	Executor *sandbox.Executor
}

func New(sessions dialog.SessionStore, executor *sandbox.Executor) *Manager {
	return &Manager{Sessions: sessions, Executor: executor}
}

// RegenerationResult mirrors _regenerate_model's return shape.
type RegenerationResult struct {
	Success bool
	Result  model.ExecutionResult
	Error   string
}

func (m *Manager) regenerateWhole(ctx context.Context, sess *dialog.Session) RegenerationResult {
	params, opLines, topLevel, err := sess.Graph.RenderScript()
	if err != nil {
		return RegenerationResult{Success: false, Error: err.Error()}
	}
	if len(topLevel) == 0 {
		return RegenerationResult{Success: true}
	}
	sandboxParams := make([]sandbox.ParamLine, len(params))
	for i, p := range params {
		sandboxParams[i] = sandbox.ParamLine{Name: p.Name, Literal: p.Literal}
	}
	script, err := sandbox.AssembleScript(sandboxParams, opLines, topLevel)
	if err != nil {
		return RegenerationResult{Success: false, Error: err.Error()}
	}
	result, err := m.Executor.Run(ctx, script, sandbox.Command{SessionID: sess.ID, Context: "edit_regenerate"}, sandbox.ResourceLimits{})
	if err != nil {
		return RegenerationResult{Success: false, Error: err.Error()}
	}
	if result.Status == model.StatusSuccess {
		sess.SetLastScript(result.Script)
		return RegenerationResult{Success: true, Result: result}
	}
	return RegenerationResult{Success: false, Result: result, Error: result.Error}
}

func (m *Manager) regenerateSubset(ctx context.Context, sess *dialog.Session, affected []pig.NodeRef) RegenerationResult {
	if len(affected) == 0 {
		return RegenerationResult{Success: true}
	}
	params, opLines, topLevel, err := sess.Graph.RenderSubset(affected)
	if err != nil {
		return RegenerationResult{Success: false, Error: err.Error()}
	}
	if len(topLevel) == 0 {
		return RegenerationResult{Success: true}
	}
	sandboxParams := make([]sandbox.ParamLine, len(params))
	for i, p := range params {
		sandboxParams[i] = sandbox.ParamLine{Name: p.Name, Literal: p.Literal}
	}
	script, err := sandbox.AssembleScript(sandboxParams, opLines, topLevel)
	if err != nil {
		return RegenerationResult{Success: false, Error: err.Error()}
	}
	result, err := m.Executor.Run(ctx, script, sandbox.Command{SessionID: sess.ID, Context: "edit_regenerate"}, sandbox.ResourceLimits{})
	if err != nil {
		return RegenerationResult{Success: false, Error: err.Error()}
	}
	if result.Status == model.StatusSuccess {
		sess.SetLastScript(result.Script)
		return RegenerationResult{Success: true, Result: result}
	}
	return RegenerationResult{Success: false, Result: result, Error: result.Error}
}

// LoadPreviousResult mirrors load_for_editing's returned data shape.
type LoadPreviousResult struct {
	EditableCode string
	Parameters   []pig.ParameterView
	Operations   []pig.OperationView
	VersionCount int
}

// LoadPrevious loads a previously persisted script back into the
// session's graph as a single named operation ("loaded"), the way
// load_for_editing's enable_direct_code_editing path does for a
// freshly reopened session. script is the file content read by the
// caller (persisted scripts live under the Sandboxed Executor's
// ScriptsDir — reading the file itself is the caller's job, kept out
// of this package so edit stays storage-agnostic).
func (m *Manager) LoadPrevious(sessionID, script string) (LoadPreviousResult, error) {
	sess, err := m.Sessions.Get(sessionID)
	if err != nil {
		return LoadPreviousResult{}, err
	}

	ref, ok := sess.Graph.FindOperationByName("loaded")
	if !ok {
		ref, err = sess.Graph.AddOperation("loaded", model.OpFreeScript{Script: script}, nil, "loaded from a previous generation")
		if err != nil {
			return LoadPreviousResult{}, err
		}
	} else {
		if _, _, err := sess.Graph.EditOperationScript("loaded", script, false); err != nil {
			return LoadPreviousResult{}, err
		}
	}
	sess.Graph.RecordLoadPrevious("loaded previous generation", map[string]any{"operation": ref.String()})

	ops, err := sess.Graph.Operations()
	if err != nil {
		return LoadPreviousResult{}, err
	}
	return LoadPreviousResult{
		EditableCode: script,
		Parameters:   sess.Graph.Parameters(),
		Operations:   ops,
		VersionCount: len(sess.Graph.History()),
	}, nil
}

// DirectEditResult mirrors edit_code_directly's return shape.
type DirectEditResult struct {
	Affected         []pig.NodeRef
	Created          []pig.NodeRef
	CheckpointBefore string
	Regeneration     *RegenerationResult
}

// DirectEdit checkpoints the graph, then rewrites the named
// operation's script (inferring any free identifiers as new
// parameters), optionally regenerating the whole model.
func (m *Manager) DirectEdit(ctx context.Context, sessionID, operationName, newScript string, autoRegenerate bool) (DirectEditResult, error) {
	sess, err := m.Sessions.Get(sessionID)
	if err != nil {
		return DirectEditResult{}, err
	}

	checkpointID := sess.Graph.CreateCheckpoint(uuid.NewString(), fmt.Sprintf("before direct edit of operation %q", operationName))

	affected, created, err := sess.Graph.EditOperationScript(operationName, newScript, true)
	if err != nil {
		return DirectEditResult{}, err
	}

	out := DirectEditResult{Affected: affected, Created: created, CheckpointBefore: checkpointID}
	if autoRegenerate {
		regen := m.regenerateWhole(ctx, sess)
		out.Regeneration = &regen
	}
	return out, nil
}

// BatchParameterUpdateResult mirrors update_parameters_batch's return shape.
type BatchParameterUpdateResult struct {
	Updated          []string
	Affected         []pig.NodeRef
	CheckpointBefore string
	Regeneration     *RegenerationResult
}

// BatchParameterUpdate checkpoints the graph, then applies every
// update in sorted-key order so the result is deterministic, unioning
// the affected closures across all updates before regenerating once.
// It stops at the first update that fails and returns only that error:
// updates applied before it stay applied, later ones are not attempted,
// and no per-parameter failure list is collected.
func (m *Manager) BatchParameterUpdate(ctx context.Context, sessionID string, updates map[string]model.Value, autoRegenerate bool) (BatchParameterUpdateResult, error) {
	sess, err := m.Sessions.Get(sessionID)
	if err != nil {
		return BatchParameterUpdateResult{}, err
	}

	checkpointID := sess.Graph.CreateCheckpoint(uuid.NewString(), "before batch parameter update")

	affectedSet := map[pig.NodeRef]struct{}{}
	var updated []string
	for _, name := range model.SortedKeys(updates) {
		affected, err := sess.Graph.UpdateParameter(name, updates[name])
		if err != nil {
			return BatchParameterUpdateResult{}, err
		}
		updated = append(updated, name)
		for _, ref := range affected {
			affectedSet[ref] = struct{}{}
		}
	}

	affected := make([]pig.NodeRef, 0, len(affectedSet))
	for ref := range affectedSet {
		affected = append(affected, ref)
	}

	out := BatchParameterUpdateResult{Updated: updated, Affected: affected, CheckpointBefore: checkpointID}
	if autoRegenerate {
		regen := m.regenerateSubset(ctx, sess, affected)
		out.Regeneration = &regen
	}
	return out, nil
}

// Checkpoint creates a named version checkpoint.
func (m *Manager) Checkpoint(sessionID, description string) (string, error) {
	sess, err := m.Sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	id := sess.Graph.CreateCheckpoint(uuid.NewString(), description)
	return id, nil
}

// RollbackResult mirrors rollback_to_checkpoint's return shape.
type RollbackResult struct {
	Regeneration RegenerationResult
}

// Rollback restores the graph to checkpointID and regenerates the
// whole model, since a rollback can touch any part of the graph.
func (m *Manager) Rollback(ctx context.Context, sessionID, checkpointID string) (RollbackResult, error) {
	sess, err := m.Sessions.Get(sessionID)
	if err != nil {
		return RollbackResult{}, err
	}
	if err := sess.Graph.RollbackToCheckpoint(checkpointID); err != nil {
		return RollbackResult{}, err
	}
	return RollbackResult{Regeneration: m.regenerateWhole(ctx, sess)}, nil
}

// HistoryEntry mirrors get_edit_history's formatted entries.
type HistoryEntry struct {
	Type         pig.HistoryEntryType
	Timestamp    time.Time
	Description  string
	CanRollback  bool
	CheckpointID string
}

// EditHistory returns the session's version history, formatted the
// way _format_history_description renders each entry type.
func (m *Manager) EditHistory(sessionID string) ([]HistoryEntry, error) {
	sess, err := m.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	raw := sess.Graph.History()
	out := make([]HistoryEntry, len(raw))
	for i, e := range raw {
		out[i] = HistoryEntry{
			Type:         e.Type,
			Timestamp:    e.Timestamp,
			Description:  formatHistoryDescription(e),
			CanRollback:  e.Type == pig.HistoryCheckpoint,
			CheckpointID: e.CheckpointID,
		}
	}
	return out, nil
}

func formatHistoryDescription(e pig.HistoryEntry) string {
	switch e.Type {
	case pig.HistoryCheckpoint:
		if e.Description != "" {
			return e.Description
		}
		return "checkpoint"
	case pig.HistoryDirectEdit:
		return fmt.Sprintf("direct edit: %s", e.Description)
	case pig.HistoryParameterUpdate:
		return fmt.Sprintf("parameter update: %s", e.Description)
	case pig.HistoryLoadPrevious:
		return "loaded previous generation"
	default:
		return string(e.Type)
	}
}

// ValidationOutcome mirrors validate_edit's combined report.
type ValidationOutcome struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateEdit checks a candidate script and/or parameter updates
// without applying either: the script is validated exactly like a
// Planner-produced script (ValidatePlan with only Script set), and each
// parameter update is dry-run against a throwaway copy of the graph so
// a failing update never mutates the real one.
func (m *Manager) ValidateEdit(sessionID string, editedScript string, parameterUpdates map[string]model.Value) (ValidationOutcome, error) {
	sess, err := m.Sessions.Get(sessionID)
	if err != nil {
		return ValidationOutcome{}, err
	}

	var out ValidationOutcome
	out.Valid = true

	if editedScript != "" {
		res := planner.ValidatePlan(model.Plan{Script: editedScript})
		if !res.Valid {
			out.Valid = false
			for _, issue := range res.Errors {
				out.Errors = append(out.Errors, issue.Message)
			}
		}
		out.Warnings = append(out.Warnings, res.Warnings...)
	}

	if len(parameterUpdates) > 0 {
		scratch := pig.New()
		scratch.Restore(sess.Graph.Snapshot())
		for _, name := range model.SortedKeys(parameterUpdates) {
			if _, err := scratch.UpdateParameter(name, parameterUpdates[name]); err != nil {
				out.Valid = false
				out.Errors = append(out.Errors, err.Error())
			}
		}
	}

	return out, nil
}

// EditableContent is the full current script plus the parameter/
// operation views a caller presenting a "view source" UI needs,
// mirroring get_editable_content's combined return.
type EditableContent struct {
	Script     string
	Parameters []pig.ParameterView
	Operations []pig.OperationView
}

// GetEditableContent renders the whole graph to its current script
// without executing it, for read-only inspection or as the seed text
// of a direct-edit UI.
func (m *Manager) GetEditableContent(sessionID string) (EditableContent, error) {
	sess, err := m.Sessions.Get(sessionID)
	if err != nil {
		return EditableContent{}, err
	}

	params, opLines, topLevel, err := sess.Graph.RenderScript()
	if err != nil {
		return EditableContent{}, err
	}

	var script string
	if len(topLevel) > 0 {
		sandboxParams := make([]sandbox.ParamLine, len(params))
		for i, p := range params {
			sandboxParams[i] = sandbox.ParamLine{Name: p.Name, Literal: p.Literal}
		}
		script, err = sandbox.AssembleScript(sandboxParams, opLines, topLevel)
		if err != nil {
			return EditableContent{}, err
		}
	}

	ops, err := sess.Graph.Operations()
	if err != nil {
		return EditableContent{}, err
	}

	return EditableContent{Script: script, Parameters: sess.Graph.Parameters(), Operations: ops}, nil
}
