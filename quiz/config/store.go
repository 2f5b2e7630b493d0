package config

import (
	"maps"
	"sync"
)

// Store holds a single nullable settings map.
type Store struct {
	config map[string]any
	mu     sync.RWMutex
}

// NewStore creates a store whose value is nil.
func NewStore() *Store {
	return &Store{}
}

// Get returns a shallow copy of the current value, or nil when unset.
func (s *Store) Get() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.config)
}

// Set replaces the current value. A nil map clears it.
func (s *Store) Set(config map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = maps.Clone(config)
}

// Update replaces the value with fn applied to a copy of the previous one.
func (s *Store) Update(fn func(prev map[string]any) map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = maps.Clone(fn(maps.Clone(s.config)))
}

var defaultStore = NewStore()

// Get returns the process-wide settings value.
func Get() map[string]any { return defaultStore.Get() }

// Set replaces the process-wide settings value.
func Set(config map[string]any) { defaultStore.Set(config) }

// Update derives the process-wide settings value from its previous value.
func Update(fn func(prev map[string]any) map[string]any) { defaultStore.Update(fn) }
