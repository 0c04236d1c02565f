package graph

import (
	"context"
	"sync"
)

// Store holds registered graphs. It replaces any notion of a process-wide
// graph registry; callers construct a store explicitly and pass it to
// whatever needs graph lookup.
type Store interface {
	// Create registers a graph, returning its id.
	Create(ctx context.Context, g *Graph) (string, error)
	// Get retrieves a graph by id. Returns ErrGraphNotFound if absent.
	Get(ctx context.Context, id string) (*Graph, error)
	// Drop removes a graph. Returns ErrGraphNotFound if absent.
	Drop(ctx context.Context, id string) error
	// List returns the ids of all registered graphs.
	List(ctx context.Context) ([]string, error)
}

// MemoryStore is an in-process Store implementation. Graph histories live
// on the nodes themselves, so dropping a graph discards its history too.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]*Graph
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs: make(map[string]*Graph),
	}
}

// Create registers a graph under its id.
func (s *MemoryStore) Create(_ context.Context, g *Graph) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graphs[g.ID] = g
	return g.ID, nil
}

// Get retrieves a graph by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, exists := s.graphs[id]
	if !exists {
		return nil, ErrGraphNotFound
	}
	return g, nil
}

// Drop removes a graph from the store.
func (s *MemoryStore) Drop(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.graphs[id]; !exists {
		return ErrGraphNotFound
	}
	delete(s.graphs, id)
	return nil
}

// List returns all registered graph ids.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.graphs))
	for id := range s.graphs {
		ids = append(ids, id)
	}
	return ids, nil
}
