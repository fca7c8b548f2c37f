package ports

import (
	"context"

	"github.com/aretw0/ramal/pkg/domain"
)

// SessionStore defines the interface for persisting chat sessions.
// Sessions are keyed by chat ID; there is at most one per chat.
type SessionStore interface {
	// Save persists the session under session.ChatID, replacing any previous one.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session of a chat.
	// Returns domain.ErrSessionNotFound if the chat has no session.
	Load(ctx context.Context, chatID string) (*domain.Session, error)

	// Delete removes the session of a chat. Deleting a missing session is not an error.
	Delete(ctx context.Context, chatID string) error

	// List returns the chat IDs that currently hold a session.
	List(ctx context.Context) ([]string, error)
}
