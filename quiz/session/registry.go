package session

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mischool/transport/websocket"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// Registry tracks live play sessions by ID.
type Registry struct {
	sessions map[string]*websocket.Session
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*websocket.Session),
	}
}

// Add registers s and removes it again once its connection has ended.
func (r *Registry) Add(s *websocket.Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidSessionID
	}

	key := strings.ToLower(s.ID)
	r.mu.Lock()
	if _, exists := r.sessions[key]; exists {
		r.mu.Unlock()
		return ErrSessionAlreadyExists
	}
	r.sessions[key] = s
	r.mu.Unlock()

	go func() {
		<-s.Done()
		r.forget(s)
	}()
	return nil
}

// Get retrieves a session by ID.
func (r *Registry) Get(id string) (*websocket.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[strings.ToLower(id)]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns all tracked sessions, oldest first.
func (r *Registry) List() []*websocket.Session {
	r.mu.RLock()
	result := make([]*websocket.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b *websocket.Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove closes the session with the given ID and stops tracking it.
func (r *Registry) Remove(id string) error {
	key := strings.ToLower(id)

	r.mu.Lock()
	s, exists := r.sessions[key]
	if exists {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	return s.Close()
}

// CloseAll closes every tracked session and waits for each to finish. It
// returns the number of sessions closed.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	sessions := make([]*websocket.Session, 0, len(r.sessions))
	for key, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	// Close waits on the session goroutine, so the lock must be released first.
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("[join] failed to close session")
		}
	}
	return len(sessions)
}

// forget drops s if it is still the session registered under its ID.
func (r *Registry) forget(s *websocket.Session) {
	key := strings.ToLower(s.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[key] == s {
		delete(r.sessions, key)
	}
}
