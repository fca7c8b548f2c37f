package ports

import (
	"context"

	"github.com/aretw0/ramal/pkg/domain"
)

// EntityResolver resolves a template path (e.g. "debtor.name") against
// the entity a session is bound to.
type EntityResolver interface {
	// Resolve returns the value and true when found. A missing value is
	// reported as (nil, false, nil), never as an error.
	Resolve(ctx context.Context, path string, entityID string) (any, bool, error)
}

// EntityResolverFunc adapts a function to EntityResolver.
type EntityResolverFunc func(ctx context.Context, path string, entityID string) (any, bool, error)

// Resolve calls f.
func (f EntityResolverFunc) Resolve(ctx context.Context, path string, entityID string) (any, bool, error) {
	return f(ctx, path, entityID)
}

// OutboundChannel delivers effects to a chat.
// Delivery and retry semantics belong to the channel.
type OutboundChannel interface {
	Send(ctx context.Context, chatID string, effect domain.Effect) error
}

// ChatLifecycle is the handoff sink of the surrounding system.
type ChatLifecycle interface {
	// AssignToQueue moves the chat to a human agent queue.
	AssignToQueue(ctx context.Context, chatID string, reason string) error
}
