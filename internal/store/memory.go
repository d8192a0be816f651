// internal/store/memory.go
//
// Store interface for session snapshots plus its in-memory implementation.
//
// Characteristics:
//   - Stores game.Game snapshots keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Get returns ErrNotFound for unknown IDs.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/robalobadob/colorgame/internal/game"
)

// ErrNotFound is returned when no snapshot exists for an ID.
var ErrNotFound = errors.New("not found")

// Store persists in-progress session snapshots.
// Implementations may be backed by memory (this file) or SQLite (sqlite.go).
type Store interface {
	// Save persists or replaces the snapshot for g.ID.
	Save(ctx context.Context, g game.Game) error

	// Get retrieves a snapshot by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (game.Game, error)

	// Delete removes a snapshot. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases resources held by the store.
	Close() error
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex         // guards games map
	games map[string]game.Game // keyed by Game.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{games: make(map[string]game.Game)}
}

// Save adds or updates the snapshot in the map.
func (m *memory) Save(ctx context.Context, g game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g.Clone()
	return nil
}

// Get looks up a snapshot by ID and returns a copy.
func (m *memory) Get(ctx context.Context, id string) (game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.games[id]; ok {
		return g.Clone(), nil
	}
	return game.Game{}, ErrNotFound
}

// Delete drops the snapshot for id.
func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, id)
	return nil
}

func (m *memory) Close() error { return nil }
