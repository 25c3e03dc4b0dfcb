package state

import (
	"context"
	"sync"
)

// MemoryStore provides an in-memory implementation of Store.
type MemoryStore struct {
	guilds map[string]GuildState
	saves  int
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guilds: make(map[string]GuildState),
	}
}

// Load returns the stored state for a guild.
func (s *MemoryStore) Load(_ context.Context, guildID string) (GuildState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gs, exists := s.guilds[guildID]
	if !exists {
		return GuildState{}, false, nil
	}
	return gs.Clone(), true, nil
}

// Save stores a copy of the guild state.
func (s *MemoryStore) Save(_ context.Context, guildID string, gs GuildState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.guilds[guildID] = gs.Clone()
	s.saves++
	return nil
}

// Saves returns how many writes the store has accepted.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close is a no-op for the memory store.
func (*MemoryStore) Close() error {
	return nil
}
