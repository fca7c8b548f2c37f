package ramal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/internal/runtime"
	"github.com/aretw0/ramal/pkg/adapters/memory"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/handoff"
	"github.com/aretw0/ramal/pkg/observability"
	"github.com/aretw0/ramal/pkg/ports"
	"github.com/aretw0/ramal/pkg/registry"
	"github.com/aretw0/ramal/pkg/runner"
	"github.com/aretw0/ramal/pkg/session"
)

// Bot runs flows for chats: it owns one session per chat, feeds inbound
// messages to the engine under the chat lock, persists the result and
// delivers effects. When the bot must give up a chat it sends the neutral
// handoff message, assigns the chat to the agent queue once and drops the
// session.
type Bot struct {
	catalog   *registry.Catalog
	engine    *runtime.Engine
	sessions  *session.Manager
	handoff   *handoff.Controller
	channel   ports.OutboundChannel
	lifecycle ports.ChatLifecycle
	sanitizer runner.Sanitizer
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time

	handoffMessage string
	store          ports.SessionStore
	hooks          domain.LifecycleHooks
	engineOpts     []runtime.EngineOption
	sessionOpts    []session.Option
	handoffOpts    []handoff.Option
	catalogOpts    []registry.Option
}

// New creates a bot that reads flows from graphs.
func New(graphs ports.GraphStore, opts ...Option) (*Bot, error) {
	if graphs == nil {
		return nil, errors.New("ramal: a graph store is required")
	}
	b := &Bot{
		logger:         logging.NewNop(),
		now:            time.Now,
		sanitizer:      runner.NewSanitizer(),
		handoffMessage: DefaultHandoffMessage,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.store == nil {
		b.store = memory.NewSessionStore()
	}

	b.catalog = registry.NewCatalog(graphs, append([]registry.Option{registry.WithLogger(b.logger)}, b.catalogOpts...)...)
	b.sessions = session.NewManager(b.store, append([]session.Option{session.WithLogger(b.logger)}, b.sessionOpts...)...)
	b.handoff = handoff.New(b.handoffOpts...)
	b.engine = runtime.NewEngine(append([]runtime.EngineOption{
		runtime.WithLogger(b.logger),
		runtime.WithLifecycleHooks(b.hooks),
		runtime.WithClock(b.now),
	}, b.engineOpts...)...)
	return b, nil
}

// Start puts the chat in bot mode with a fresh session at the flow's
// start node, replacing any session the chat had.
func (b *Bot) Start(ctx context.Context, chatID, flowID, entityID string) (*domain.TransitionResult, error) {
	graph, err := b.catalog.ForStart(ctx, flowID)
	if err != nil {
		return nil, err
	}

	var res *domain.TransitionResult
	err = b.sessions.WithLock(ctx, chatID, func(ctx context.Context, tx *session.Tx) error {
		fresh := domain.NewSession(chatID, graph.Flow, entityID, b.now())
		res, _ = b.engine.Advance(ctx, fresh, graph, domain.Started())
		return b.conclude(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}
	b.logger.Info("session started", "chat_id", chatID, "flow_id", flowID, "signal", res.Signal)
	return res, nil
}

// HandleMessage feeds one user message to the chat's session.
// It returns domain.ErrSessionNotFound when the chat is not in bot mode;
// the caller keeps the chat with human agents.
//
// Engine failures do not surface as errors: the chat is handed off and the
// failure is reported in the result, logs and metrics.
func (b *Bot) HandleMessage(ctx context.Context, chatID, text string) (*domain.TransitionResult, error) {
	text, err := b.sanitizer.Clean(text)
	if err != nil {
		return nil, err
	}

	var res *domain.TransitionResult
	err = b.sessions.WithLock(ctx, chatID, func(ctx context.Context, tx *session.Tx) error {
		sess, err := tx.Load(ctx)
		if err != nil {
			return err
		}

		graph, err := b.catalog.Graph(ctx, sess.FlowID)
		if err != nil {
			b.logger.Error("flow unavailable for session", "chat_id", chatID, "flow_id", sess.FlowID, "err", err)
			res = &domain.TransitionResult{Session: sess.Clone(), Signal: domain.SignalError, Err: err}
		} else {
			res, _ = b.engine.Advance(ctx, sess, graph, domain.Reply(text))
		}
		return b.conclude(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// conclude applies the handoff decision to an advance result, persists the
// session and delivers the effects. It runs under the chat lock.
func (b *Bot) conclude(ctx context.Context, tx *session.Tx, res *domain.TransitionResult) error {
	action := b.handoff.OnTransition(res)
	if !action.Handoff() {
		if err := tx.Save(ctx, res.Session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		b.deliver(ctx, tx.ChatID(), res.Effects)
		return nil
	}

	// A failed advance may have produced half a conversation; the user
	// only gets the neutral message.
	effects := res.Effects
	if res.Signal == domain.SignalError {
		effects = nil
	} else {
		res.Signal = domain.SignalHandoff
	}
	res.Reason = action.Reason
	res.Session.Status = domain.SessionHandedOff
	res.Session.AwaitingInput = false

	effects = append(effects, domain.Effect{Type: domain.EffectSystem, Text: b.handoffMessage})
	b.deliver(ctx, tx.ChatID(), effects)

	if b.lifecycle != nil {
		if err := b.lifecycle.AssignToQueue(ctx, tx.ChatID(), action.Reason); err != nil {
			return fmt.Errorf("assign chat %s to queue: %w", tx.ChatID(), err)
		}
	} else {
		b.logger.Warn("no chat lifecycle configured, handoff not dispatched", "chat_id", tx.ChatID())
	}
	b.metrics.ObserveHandoff(action.Reason)
	b.logger.Info("chat handed off",
		"chat_id", tx.ChatID(), "flow_id", res.Session.FlowID,
		"node_id", res.Session.CurrentNodeID, "reason", action.Reason)

	return tx.Clear(ctx)
}

// deliver sends effects in order. Delivery failures are logged; retries
// are the channel's concern.
func (b *Bot) deliver(ctx context.Context, chatID string, effects []domain.Effect) {
	if b.channel == nil {
		return
	}
	for _, eff := range effects {
		if err := b.channel.Send(ctx, chatID, eff); err != nil {
			b.logger.Error("deliver effect", "chat_id", chatID, "type", eff.Type, "err", err)
		}
	}
}

// Release drops the chat's session without any message, e.g. when an
// agent takes the chat over. Releasing a chat without a session is a no-op.
func (b *Bot) Release(ctx context.Context, chatID string) error {
	return b.sessions.WithLock(ctx, chatID, func(ctx context.Context, tx *session.Tx) error {
		return tx.Clear(ctx)
	})
}

// Reset returns a chat to the bot with a fresh session. An empty flowID
// restarts the flow of the chat's current session.
func (b *Bot) Reset(ctx context.Context, chatID, flowID, entityID string) (*domain.TransitionResult, error) {
	if flowID == "" {
		s, err := b.sessions.Load(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("reset %s without flow: %w", chatID, err)
		}
		flowID = s.FlowID
		if entityID == "" {
			entityID = s.EntityID
		}
	}
	return b.Start(ctx, chatID, flowID, entityID)
}

// Session returns the chat's current session.
func (b *Bot) Session(ctx context.Context, chatID string) (*domain.Session, error) {
	return b.sessions.Load(ctx, chatID)
}

// Sessions lists the chats currently in bot mode.
func (b *Bot) Sessions(ctx context.Context) ([]string, error) {
	return b.sessions.List(ctx)
}

// Idle returns the chats that have been waiting for a reply for at least
// threshold, for an external sweeper to nudge or release.
func (b *Bot) Idle(ctx context.Context, threshold time.Duration) ([]string, error) {
	idle, err := b.sessions.Idle(ctx, threshold, b.now())
	if err != nil {
		return nil, err
	}
	chats := make([]string, 0, len(idle))
	for _, s := range idle {
		chats = append(chats, s.ChatID)
	}
	return chats, nil
}

// Catalog returns the compiled flow cache.
func (b *Bot) Catalog() *registry.Catalog { return b.catalog }
