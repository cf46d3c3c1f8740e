// Package memory provides an in-process implementation of storage.Store.
// It backs tests and the relay when STORAGE_BACKEND is "memory".
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/carlo-colombo/cashsplitter/internal/models"
	"github.com/carlo-colombo/cashsplitter/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps groups in a map guarded by a RWMutex. Groups are cloned on
// the way in and out so callers never share slices with the store.
type Store struct {
	mu     sync.RWMutex
	groups map[models.Identity]models.Group
}

// New returns an empty store.
func New() *Store {
	return &Store{groups: make(map[models.Identity]models.Group)}
}

func (s *Store) Get(_ context.Context, id models.Identity) (models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return models.Group{}, fmt.Errorf("%w: %s", storage.ErrNotFound, storage.Key(id))
	}
	return g.Clone(), nil
}

func (s *Store) Put(_ context.Context, g models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.Identity()] = g.Clone()
	return nil
}

// List returns identities ordered by creation timestamp, then description.
func (s *Store) List(_ context.Context) ([]models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]models.Identity, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Timestamp != ids[j].Timestamp {
			return ids[i].Timestamp < ids[j].Timestamp
		}
		return ids[i].Description < ids[j].Description
	})
	return ids, nil
}

func (s *Store) Delete(_ context.Context, id models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, storage.Key(id))
	}
	delete(s.groups, id)
	return nil
}

func (s *Store) Close() error {
	return nil
}
