package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a chat.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring one writer per chat.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Active per-chat locks

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu, and call release(chatID) after unlocking.
func (m *Manager) acquire(chatID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[chatID]
	if !exists {
		entry = &lockEntry{}
		m.locks[chatID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[chatID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, chatID)
	}
}

// Tx gives lock-free access to one chat's session while its lock is held.
// It is only valid inside the WithLock callback that produced it.
type Tx struct {
	chatID string
	m      *Manager
}

// ChatID returns the chat the transaction is bound to.
func (tx *Tx) ChatID() string { return tx.chatID }

// Load returns the chat's session or domain.ErrSessionNotFound.
func (tx *Tx) Load(ctx context.Context) (*domain.Session, error) {
	return tx.m.store.Load(ctx, tx.chatID)
}

// Save persists the session. Closed sessions (handed off or completed) are
// cleared instead so stale bot state never resurrects on the chat.
func (tx *Tx) Save(ctx context.Context, s *domain.Session) error {
	if s.ChatID != tx.chatID {
		return fmt.Errorf("session belongs to chat %s, not %s", s.ChatID, tx.chatID)
	}
	if s.Closed() {
		return tx.Clear(ctx)
	}
	return tx.m.store.Save(ctx, s)
}

// Clear removes the chat's session.
func (tx *Tx) Clear(ctx context.Context) error {
	return tx.m.store.Delete(ctx, tx.chatID)
}

// WithLock executes fn while holding the lock for the chat.
func (m *Manager) WithLock(ctx context.Context, chatID string, fn func(context.Context, *Tx) error) error {
	entry := m.acquire(chatID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(chatID)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "chat:"+chatID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// A canceled request context must not prevent the release.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"chat_id", chatID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx, &Tx{chatID: chatID, m: m})
}

// Load retrieves the session of a chat.
func (m *Manager) Load(ctx context.Context, chatID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.WithLock(ctx, chatID, func(ctx context.Context, tx *Tx) error {
		var err error
		s, err = tx.Load(ctx)
		return err
	})
	return s, err
}

// Save persists a session, clearing it when it is closed.
func (m *Manager) Save(ctx context.Context, s *domain.Session) error {
	return m.WithLock(ctx, s.ChatID, func(ctx context.Context, tx *Tx) error {
		return tx.Save(ctx, s)
	})
}

// Clear removes the session of a chat. It is how an agent preempts the bot.
func (m *Manager) Clear(ctx context.Context, chatID string) error {
	return m.WithLock(ctx, chatID, func(ctx context.Context, tx *Tx) error {
		return tx.Clear(ctx)
	})
}

// Exists reports whether the chat currently has a session.
func (m *Manager) Exists(ctx context.Context, chatID string) (bool, error) {
	_, err := m.Load(ctx, chatID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrSessionNotFound):
		return false, nil
	}
	return false, err
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Idle returns the chats awaiting input whose last advance is older than threshold.
func (m *Manager) Idle(ctx context.Context, threshold time.Duration, now time.Time) ([]*domain.Session, error) {
	ids, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var idle []*domain.Session
	for _, id := range ids {
		s, err := m.store.Load(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", id, err)
		}
		if s.AwaitingInput && now.Sub(s.LastAdvancedAt) >= threshold {
			idle = append(idle, s)
		}
	}
	return idle, nil
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
