// Package dialog holds per-session conversation state: the turn
// history, the PIG graph backing the session's model, and the
// busy guard the Orchestrator uses to serialize turns. Grounded on
// original_source/src/core/dialog_manager.py's DialogManager, whose
// module-level sessions/model_states maps become the SessionStore
// interface here (REDESIGN FLAG: per-session mutex, not a single
// module-level is_processing flag, so sessions progress independently
// per spec.md §5).
package dialog

import (
	"sync"
	"time"

	"github.com/smilemakc/cadtalk/internal/pig"
)

// Turn is one exchange in a session's conversation history.
type Turn struct {
	UserMessage  string
	ResponseText string
	Timestamp    time.Time
}

// Session is the full state the Orchestrator needs to process a turn:
// the PIG graph, conversation history, and the last script executed
// successfully (persisted by bunstore; neither the self-correction loop
// nor LoadPrevious reads it).
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	busy    bool
	Graph   *pig.Graph
	History []Turn
	LastScript string
}

// NewSession creates an empty session with a fresh PIG graph.
func NewSession(id string) *Session {
	return &Session{ID: id, CreatedAt: now(), Graph: pig.New()}
}

var now = time.Now

// TryAcquire marks the session busy, returning false if it is already
// processing a turn. Callers must call Release once done.
func (s *Session) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

// Release clears the busy flag.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

// AppendTurn records one exchange, trimming to the most recent 50 so a
// long-lived session's history doesn't grow without bound.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, t)
	const maxTurns = 50
	if len(s.History) > maxTurns {
		s.History = s.History[len(s.History)-maxTurns:]
	}
}

// RecentHistory returns the last n turns, oldest first.
func (s *Session) RecentHistory(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.History) {
		n = len(s.History)
	}
	out := make([]Turn, n)
	copy(out, s.History[len(s.History)-n:])
	return out
}

// SetLastScript records the most recently executed script. Callers set
// it after a successful run.
func (s *Session) SetLastScript(script string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastScript = script
}

func (s *Session) GetLastScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastScript
}

// SessionStore is the persistence boundary for sessions, matching
// DialogManager's in-memory sessions/model_states maps one-for-one;
// internal/dialog/memory implements the default, internal/dialog/bunstore
// the optional Postgres-backed one.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	List() ([]*Session, error)
	Delete(id string) error
}
