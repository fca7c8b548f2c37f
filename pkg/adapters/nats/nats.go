// Package nats connects a bot to the CRM's message bus: inbound chat
// messages and start commands are consumed from queue subscriptions, and
// outbound effects and handoffs are published as JSON envelopes.
//
// Subjects, relative to a prefix (default "ramal"):
//
//	<prefix>.inbound   InboundMessage, consumed
//	<prefix>.start     StartCommand, consumed
//	<prefix>.outbound  OutboundEnvelope with an effect, published
//	<prefix>.handoff   OutboundEnvelope with a reason, published
//
// Chat IDs travel in payloads because WhatsApp IDs contain dots.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/domain"
)

// DefaultPrefix is the subject prefix when none is configured.
const DefaultPrefix = "ramal"

// DefaultQueue is the queue group replicas share inbound subjects in.
const DefaultQueue = "ramal-bot"

// DefaultHandleTimeout bounds the processing of one inbound message.
const DefaultHandleTimeout = 30 * time.Second

// Conn is the subset of *nats.Conn the adapter uses.
type Conn interface {
	Publish(subject string, data []byte) error
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Subjects derives the subjects of a prefix.
type Subjects struct {
	Inbound  string
	Start    string
	Outbound string
	Handoff  string
}

// SubjectsFor returns the subjects under prefix.
func SubjectsFor(prefix string) Subjects {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Subjects{
		Inbound:  prefix + ".inbound",
		Start:    prefix + ".start",
		Outbound: prefix + ".outbound",
		Handoff:  prefix + ".handoff",
	}
}

// InboundMessage is a user message delivered by the CRM.
type InboundMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// StartCommand puts a chat in bot mode.
type StartCommand struct {
	ChatID   string `json:"chat_id"`
	FlowID   string `json:"flow_id"`
	EntityID string `json:"entity_id,omitempty"`
}

// OutboundEnvelope is published for every effect and handoff.
type OutboundEnvelope struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Effect    *domain.Effect `json:"effect,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher implements ports.OutboundChannel and ports.ChatLifecycle on NATS.
type Publisher struct {
	conn     Conn
	subjects Subjects
	now      func() time.Time
}

// NewPublisher creates a publisher under prefix.
func NewPublisher(conn Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, subjects: SubjectsFor(prefix), now: time.Now}
}

// Send publishes an effect on the outbound subject.
func (p *Publisher) Send(ctx context.Context, chatID string, effect domain.Effect) error {
	return p.publish(p.subjects.Outbound, OutboundEnvelope{ChatID: chatID, Effect: &effect})
}

// AssignToQueue publishes the handoff; the CRM moves the chat to its agent queue.
func (p *Publisher) AssignToQueue(ctx context.Context, chatID string, reason string) error {
	return p.publish(p.subjects.Handoff, OutboundEnvelope{ChatID: chatID, Reason: reason})
}

func (p *Publisher) publish(subject string, env OutboundEnvelope) error {
	env.ID = uuid.NewString()
	env.Timestamp = p.now().UTC()
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Handler is the bot surface the consumer drives. *ramal.Bot satisfies it.
type Handler interface {
	Start(ctx context.Context, chatID, flowID, entityID string) (*domain.TransitionResult, error)
	HandleMessage(ctx context.Context, chatID, text string) (*domain.TransitionResult, error)
}

// Consumer feeds inbound subjects to a Handler.
type Consumer struct {
	conn     Conn
	handler  Handler
	subjects Subjects
	queue    string
	timeout  time.Duration
	logger   *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithQueue sets the queue group.
func WithQueue(queue string) ConsumerOption {
	return func(c *Consumer) { c.queue = queue }
}

// WithHandleTimeout bounds the processing of one message.
func WithHandleTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.timeout = d }
}

// WithLogger sets the consumer logger.
func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConsumer creates a consumer under prefix.
func NewConsumer(conn Conn, handler Handler, prefix string, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		conn:     conn,
		handler:  handler,
		subjects: SubjectsFor(prefix),
		queue:    DefaultQueue,
		timeout:  DefaultHandleTimeout,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run subscribes to the inbound subjects and blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	inbound, err := c.conn.QueueSubscribe(c.subjects.Inbound, c.queue, func(msg *nats.Msg) {
		c.onInbound(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subjects.Inbound, err)
	}
	defer unsubscribe(c.logger, inbound)

	start, err := c.conn.QueueSubscribe(c.subjects.Start, c.queue, func(msg *nats.Msg) {
		c.onStart(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subjects.Start, err)
	}
	defer unsubscribe(c.logger, start)

	c.logger.Info("NATS consumer started", "inbound", c.subjects.Inbound, "start", c.subjects.Start, "queue", c.queue)
	<-ctx.Done()
	return nil
}

func unsubscribe(logger *slog.Logger, sub *nats.Subscription) {
	err := sub.Unsubscribe()
	if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
		return
	}
	if err != nil {
		logger.Warn("NATS unsubscribe failed", "subject", sub.Subject, "err", err)
	}
}

func (c *Consumer) onInbound(ctx context.Context, data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.ChatID == "" {
		c.logger.Warn("dropping malformed inbound message", "err", err, "size", len(data))
		return
	}

	msgCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.handler.HandleMessage(msgCtx, msg.ChatID, msg.Text)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		c.logger.Debug("chat not in bot mode, ignoring message", "chat_id", msg.ChatID)
	case err != nil:
		c.logger.Error("handle inbound message", "chat_id", msg.ChatID, "err", err)
	default:
		c.logger.Debug("inbound message handled", "chat_id", msg.ChatID, "signal", res.Signal)
	}
}

func (c *Consumer) onStart(ctx context.Context, data []byte) {
	var cmd StartCommand
	if err := json.Unmarshal(data, &cmd); err != nil || cmd.ChatID == "" || cmd.FlowID == "" {
		c.logger.Warn("dropping malformed start command", "err", err, "size", len(data))
		return
	}

	msgCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.handler.Start(msgCtx, cmd.ChatID, cmd.FlowID, cmd.EntityID); err != nil {
		c.logger.Error("start chat", "chat_id", cmd.ChatID, "flow_id", cmd.FlowID, "err", err)
	}
}
