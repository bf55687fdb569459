package pig

import (
	"time"

	"github.com/smilemakc/cadtalk/internal/domainerr"
)

// HistoryEntryType tags one version-history entry. Only HistoryCheckpoint
// entries carry a restorable Snapshot and are rollback-eligible.
type HistoryEntryType string

const (
	HistoryCheckpoint      HistoryEntryType = "checkpoint"
	HistoryDirectEdit      HistoryEntryType = "direct_edit"
	HistoryParameterUpdate HistoryEntryType = "parameter_update"
	HistoryLoadPrevious    HistoryEntryType = "load_previous"
)

// maxHistoryEntries caps the version history the way the source caps
// version_history at 100 entries per session, trimming the oldest.
const maxHistoryEntries = 100

// HistoryEntry is one version-history record.
type HistoryEntry struct {
	Type         HistoryEntryType
	Timestamp    time.Time
	Description  string
	CheckpointID string
	Snapshot     *Snapshot
	Data         map[string]any
}

func (g *Graph) appendHistoryLocked(e HistoryEntry) {
	e.Timestamp = g.now()
	g.history = append(g.history, e)
	if len(g.history) > maxHistoryEntries {
		g.history = g.history[len(g.history)-maxHistoryEntries:]
	}
}

// clockNow is the package-level clock history timestamps come from; it
// defaults to time.Now.
var clockNow = time.Now

func (g *Graph) now() time.Time { return clockNow() }

// History returns the version history, oldest first.
func (g *Graph) History() []HistoryEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]HistoryEntry, len(g.history))
	copy(out, g.history)
	return out
}

// CreateCheckpoint snapshots the current graph state and appends a
// rollback-eligible history entry, returning its id.
func (g *Graph) CreateCheckpoint(id, description string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := g.snapshotLocked()
	g.appendHistoryLocked(HistoryEntry{
		Type:         HistoryCheckpoint,
		Description:  description,
		CheckpointID: id,
		Snapshot:     &snap,
	})
	return id
}

// RollbackToCheckpoint restores the graph to the state captured by the
// named checkpoint. The current state is itself checkpointed first
// (under a derived id) so a rollback is never destructive.
func (g *Graph) RollbackToCheckpoint(checkpointID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var target *Snapshot
	for i := len(g.history) - 1; i >= 0; i-- {
		e := g.history[i]
		if e.Type == HistoryCheckpoint && e.CheckpointID == checkpointID {
			target = e.Snapshot
			break
		}
	}
	if target == nil {
		return domainerr.New(domainerr.CodeSessionNotFound, "checkpoint not found: "+checkpointID)
	}

	preRollback := g.snapshotLocked()
	g.appendHistoryLocked(HistoryEntry{
		Type:         HistoryCheckpoint,
		Description:  "auto-checkpoint before rollback to " + checkpointID,
		CheckpointID: checkpointID + "-pre-rollback",
		Snapshot:     &preRollback,
	})

	g.restoreLocked(*target)
	return nil
}

// RecordDirectEdit appends a direct_edit history entry. Nothing in this
// module calls it: EditOperationScript appends its own direct_edit
// entry.
func (g *Graph) RecordDirectEdit(description string, data map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendHistoryLocked(HistoryEntry{Type: HistoryDirectEdit, Description: description, Data: data})
}

// RecordLoadPrevious appends a load_previous history entry. Called when
// a session resumes from a previously persisted generation.
func (g *Graph) RecordLoadPrevious(description string, data map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendHistoryLocked(HistoryEntry{Type: HistoryLoadPrevious, Description: description, Data: data})
}
