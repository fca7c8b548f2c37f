package ramal

import (
	"log/slog"
	"time"

	"github.com/aretw0/ramal/internal/runtime"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/handoff"
	"github.com/aretw0/ramal/pkg/observability"
	"github.com/aretw0/ramal/pkg/ports"
	"github.com/aretw0/ramal/pkg/registry"
	"github.com/aretw0/ramal/pkg/runner"
	"github.com/aretw0/ramal/pkg/session"
)

// DefaultHandoffMessage is sent to the user when the chat leaves the bot.
// It never reveals why.
const DefaultHandoffMessage = "Te estamos conectando con un asesor."

// Option configures a Bot.
type Option func(*Bot)

// WithSessionStore sets where sessions live. Defaults to memory.
func WithSessionStore(store ports.SessionStore) Option {
	return func(b *Bot) { b.store = store }
}

// WithLocker serializes a chat across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(b *Bot) { b.sessionOpts = append(b.sessionOpts, session.WithLocker(locker)) }
}

// WithLockTTL sets the expiry of distributed chat locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(b *Bot) { b.sessionOpts = append(b.sessionOpts, session.WithLockTTL(ttl)) }
}

// WithChannel sets the outbound channel effects are delivered to.
func WithChannel(ch ports.OutboundChannel) Option {
	return func(b *Bot) { b.channel = ch }
}

// WithLifecycle sets the handoff sink.
func WithLifecycle(lc ports.ChatLifecycle) Option {
	return func(b *Bot) { b.lifecycle = lc }
}

// WithResolver resolves template placeholders against the session entity.
func WithResolver(r ports.EntityResolver) Option {
	return func(b *Bot) { b.engineOpts = append(b.engineOpts, runtime.WithResolver(r)) }
}

// WithLifecycleHooks registers engine observability hooks. Repeated calls
// merge the hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) { b.hooks = b.hooks.Merge(hooks) }
}

// WithMetrics records engine and handoff counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bot) {
		b.metrics = m
		b.hooks = b.hooks.Merge(m.Hooks())
	}
}

// WithMaxSteps caps the nodes executed per inbound event.
func WithMaxSteps(n int) Option {
	return func(b *Bot) { b.engineOpts = append(b.engineOpts, runtime.WithMaxSteps(n)) }
}

// WithMaxBotTurns hands a chat off after n advances. Zero disables the limit.
func WithMaxBotTurns(n int) Option {
	return func(b *Bot) { b.handoffOpts = append(b.handoffOpts, handoff.WithMaxBotTurns(n)) }
}

// WithHandoffMessage overrides DefaultHandoffMessage.
func WithHandoffMessage(msg string) Option {
	return func(b *Bot) {
		if msg != "" {
			b.handoffMessage = msg
		}
	}
}

// WithCatalogTTL makes compiled flows expire so edits in the graph store
// are picked up without an explicit invalidation.
func WithCatalogTTL(ttl time.Duration) Option {
	return func(b *Bot) { b.catalogOpts = append(b.catalogOpts, registry.WithTTL(ttl)) }
}

// WithSanitizer overrides the inbound text sanitizer.
func WithSanitizer(s runner.Sanitizer) Option {
	return func(b *Bot) { b.sanitizer = s }
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock overrides the clock used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}
