// Package memory is the default in-process dialog.SessionStore,
// grounded on internal/infrastructure/storage/memory.go's MemoryStore
// (map-of-ID plus sync.RWMutex, one method pair per entity).
package memory

import (
	"sync"

	"github.com/smilemakc/cadtalk/internal/dialog"
	"github.com/smilemakc/cadtalk/internal/domainerr"
)

// Store is a process-local, map-backed dialog.SessionStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*dialog.Session
}

// New builds an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*dialog.Session)}
}

func (s *Store) Create(id string) (*dialog.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := dialog.NewSession(id)
	s.sessions[id] = sess
	return sess, nil
}

func (s *Store) Get(id string) (*dialog.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domainerr.SessionNotFound(id)
	}
	return sess, nil
}

func (s *Store) List() ([]*dialog.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*dialog.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domainerr.SessionNotFound(id)
	}
	delete(s.sessions, id)
	return nil
}
