package statestore

import (
	"context"
	"sync"

	"github.com/matthewbaird/formflow/internal/types"
)

// MemoryStore implements Store with a mutex-guarded map. Intended for
// tests and demos — nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]types.State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]types.State)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (types.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[key]
	if !ok {
		return types.NewState(), nil
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Merge(_ context.Context, key string, patch types.State, opts Options) (types.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[key]
	if !ok {
		current = types.NewState()
	} else {
		current = current.Clone()
	}
	merged := merge(current, patch, opts)
	s.sessions[key] = merged
	return merged.Clone(), nil
}

func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}
