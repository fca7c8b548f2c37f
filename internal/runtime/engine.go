package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
	"github.com/aretw0/ramal/pkg/variables"
)

// Engine interprets flow graphs. It holds no per-chat state and performs no
// I/O besides entity resolution, so one instance serves every chat.
type Engine struct {
	maxSteps  int
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	resolver  ports.EntityResolver
	extractor *variables.Extractor
	now       func() time.Time
}

// NewEngine creates a new engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.extractor = variables.New(
		variables.WithResolver(e.resolver),
		variables.WithLogger(e.logger),
	)
	return e
}

// MaxSteps returns the configured step cap.
func (e *Engine) MaxSteps() int { return e.maxSteps }

// advance carries the mutable state of one Advance call.
type advance struct {
	ctx   context.Context
	graph *domain.Graph
	sess  *domain.Session
	res   *domain.TransitionResult
	trail []string
}

// Advance consumes one inbound event and runs the flow until it blocks on
// user input, reaches a terminal node, hands off or fails.
//
// The input session is never mutated; the updated copy is in the result.
// The result is always non-nil. The error is non-nil exactly when the
// result signal is SignalError.
func (e *Engine) Advance(ctx context.Context, session *domain.Session, graph *domain.Graph, event domain.InboundEvent) (*domain.TransitionResult, error) {
	sess := session.Clone()
	a := &advance{
		ctx:   ctx,
		graph: graph,
		sess:  sess,
		res:   &domain.TransitionResult{Session: sess},
	}

	if sess == nil || graph == nil {
		return e.fail(a, fmt.Errorf("advance requires a session and a graph"))
	}
	if sess.Closed() {
		return e.fail(a, fmt.Errorf("chat %s: %w", sess.ChatID, domain.ErrSessionClosed))
	}
	if sess.Variables == nil {
		sess.Variables = make(map[string]any)
	}
	sess.BotTurns++
	sess.LastAdvancedAt = e.now()

	current, ok := graph.Node(sess.CurrentNodeID)
	if !ok {
		return e.fail(a, &domain.BrokenGraphError{
			FlowID: graph.Flow.ID,
			Ref:    sess.CurrentNodeID,
			Edge:   domain.EdgeCursor,
		})
	}

	if event.Kind == domain.EventUserReply && sess.AwaitingInput {
		next, done := e.resume(a, current, event.Text)
		if done {
			return e.finish(a)
		}
		if next == "" {
			e.complete(a)
			return e.finish(a)
		}
		return e.run(a, current.Base().ID, next, resumeEdge(current))
	}

	if event.Kind == domain.EventUserReply {
		e.logger.Debug("reply received while not awaiting input, re-entering current node",
			"chat_id", sess.ChatID, "node_id", sess.CurrentNodeID)
		variables.Bind(sess.Variables, "", event.Text)
	}
	sess.AwaitingInput = false
	sess.ReplyNodeID = ""
	return e.run(a, "", sess.CurrentNodeID, domain.EdgeCursor)
}

// run executes node steps starting at id until the flow stops.
func (e *Engine) run(a *advance, from, id string, edge domain.EdgeKind) (*domain.TransitionResult, error) {
	for {
		if a.res.Steps >= e.maxSteps {
			return e.fail(a, &domain.StepCapExceededError{Limit: e.maxSteps, Trail: a.trail})
		}

		node, ok := a.graph.Node(id)
		if !ok {
			return e.fail(a, &domain.BrokenGraphError{FlowID: a.graph.Flow.ID, NodeID: from, Ref: id, Edge: edge})
		}

		a.res.Steps++
		a.trail = append(a.trail, id)
		a.sess.CurrentNodeID = id
		a.sess.History = append(a.sess.History, id)
		e.emitNodeEnter(a, node)

		next, nextEdge, stop, err := e.step(a, node)
		if err != nil {
			return e.fail(a, err)
		}
		if stop {
			return e.finish(a)
		}
		e.emitNodeLeave(a, node)
		if next == "" {
			e.complete(a)
			return e.finish(a)
		}
		from, id, edge = id, next, nextEdge
	}
}

// complete marks the flow as finished at a terminal node.
func (e *Engine) complete(a *advance) {
	a.sess.Status = domain.SessionCompleted
	a.sess.AwaitingInput = false
	a.sess.ReplyNodeID = ""
	a.res.Signal = domain.SignalContinue
}

func (e *Engine) finish(a *advance) (*domain.TransitionResult, error) {
	e.logger.Debug("advance finished",
		"chat_id", a.sess.ChatID,
		"flow_id", a.sess.FlowID,
		"node_id", a.sess.CurrentNodeID,
		"signal", a.res.Signal,
		"steps", a.res.Steps)
	e.emitTransition(a)
	return a.res, nil
}

func (e *Engine) fail(a *advance, err error) (*domain.TransitionResult, error) {
	a.res.Signal = domain.SignalError
	a.res.Err = err
	attrs := []any{"err", err, "kind", domain.ErrorKind(err), "steps", a.res.Steps}
	if a.sess != nil {
		attrs = append(attrs, "chat_id", a.sess.ChatID, "flow_id", a.sess.FlowID, "node_id", a.sess.CurrentNodeID)
	}
	e.logger.Error("advance failed", attrs...)
	e.emitTransition(a)
	return a.res, err
}
