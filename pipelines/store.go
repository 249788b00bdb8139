package pipelines

import (
	"fmt"
	"sync"
	"time"
)

// Store manages pipeline definition persistence and retrieval.
type Store interface {
	// Add a new definition
	Add(def *Definition) error

	// Get a definition by ID
	Get(id string) (*Definition, error)

	// List all active definitions
	ListActive() ([]*Definition, error)

	// Update an existing definition
	Update(def *Definition) error

	// Delete a definition
	Delete(id string) error
}

// InMemoryStore implements Store using an in-memory map. Thread-safe
// with RWMutex.
type InMemoryStore struct {
	defs map[string]*Definition
	mu   sync.RWMutex
}

// NewInMemoryStore creates a new in-memory definition store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		defs: make(map[string]*Definition),
	}
}

// Add adds a new definition to the store, enforcing unique IDs.
func (s *InMemoryStore) Add(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.ID]; exists {
		return fmt.Errorf("pipeline with ID %s already exists", def.ID)
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	s.defs[def.ID] = def
	return nil
}

// Get retrieves a definition by ID.
func (s *InMemoryStore) Get(id string) (*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.defs[id]
	if !exists {
		return nil, fmt.Errorf("pipeline with ID %s not found", id)
	}
	return def, nil
}

// ListActive returns all active definitions.
func (s *InMemoryStore) ListActive() ([]*Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Definition
	for _, def := range s.defs {
		if def.Active {
			active = append(active, def)
		}
	}
	return active, nil
}

// Update updates an existing definition, preserving CreatedAt.
func (s *InMemoryStore) Update(def *Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.defs[def.ID]
	if !exists {
		return fmt.Errorf("pipeline with ID %s not found", def.ID)
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()
	s.defs[def.ID] = def
	return nil
}

// Delete removes a definition from the store.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[id]; !exists {
		return fmt.Errorf("pipeline with ID %s not found", id)
	}

	delete(s.defs, id)
	return nil
}
