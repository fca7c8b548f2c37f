package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/ramal/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use.
type SessionStore struct {
	data map[string]*domain.Session
	mu   sync.RWMutex
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]*domain.Session),
	}
}

// Save stores a deep copy of the session, similar to serialization.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	copied := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.ChatID] = copied
	return nil
}

// Load returns a copy so callers can't mutate the stored session by pointer.
func (s *SessionStore) Load(ctx context.Context, chatID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[chatID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, chatID)
	return nil
}

// List returns the chats holding a session, sorted.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chats := make([]string, 0, len(s.data))
	for id := range s.data {
		chats = append(chats, id)
	}
	sort.Strings(chats)
	return chats, nil
}
