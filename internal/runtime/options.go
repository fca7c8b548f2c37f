package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
)

// DefaultMaxSteps bounds the node steps of a single advance.
const DefaultMaxSteps = 25

// DefaultHandoffReason is used when a handoff node declares no reason.
const DefaultHandoffReason = "requested"

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithMaxSteps sets the per-advance step cap. Values below 1 are ignored.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithResolver sets the entity resolver used by templates and conditions.
func WithResolver(r ports.EntityResolver) EngineOption {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithClock overrides the clock stamped into LastAdvancedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}
