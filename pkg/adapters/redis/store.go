// Package redis provides Redis-backed session storage, a distributed chat
// lock and an entity resolver, so several ramal replicas can share chats.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/ramal/pkg/domain"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "ramal:session:"

// noExpiry is the index score used when sessions never expire (2100-01-01).
const noExpiry = 4102444800

// Store implements ports.SessionStore using Redis. Sessions are JSON
// strings; a sorted set indexes chat IDs by expiry time for List.
type Store struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL expires sessions that were not saved for ttl. Every Save
// refreshes it, so only abandoned chats expire. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClock overrides the clock used for index scores.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New connects to addr and creates a store.
func New(addr, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a store over an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client returns the underlying client, e.g. to build a Locker on it.
func (s *Store) Client() backend.UniversalClient { return s.client }

func (s *Store) key(chatID string) string { return s.prefix + chatID }

func (s *Store) indexKey() string { return s.prefix + "index" }

// Save writes the session and refreshes its expiry.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	score := float64(noExpiry)
	if s.ttl > 0 {
		score = float64(s.now().Add(s.ttl).Unix())
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(session.ChatID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: session.ChatID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", session.ChatID, err)
	}
	return nil
}

// Load reads the session of a chat.
func (s *Store) Load(ctx context.Context, chatID string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key(chatID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", chatID, err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", chatID, err)
	}
	return &session, nil
}

// Delete removes the session and its index entry.
func (s *Store) Delete(ctx context.Context, chatID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(chatID))
	pipe.ZRem(ctx, s.indexKey(), chatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session %s: %w", chatID, err)
	}
	return nil
}

// List prunes expired index entries and returns the remaining chat IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := s.now().Unix()
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%d", now)).Err(); err != nil {
		return nil, fmt.Errorf("prune session index: %w", err)
	}
	chats, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return chats, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
