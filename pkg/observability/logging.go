package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/ramal/pkg/domain"
)

// LogHooks returns lifecycle hooks that write an audit trail to logger.
// Node traffic is logged at debug; transitions at info, or error when the
// engine failed.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter",
				"chat_id", e.ChatID, "flow_id", e.FlowID,
				"node_id", e.NodeID, "kind", e.NodeKind)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave",
				"chat_id", e.ChatID, "flow_id", e.FlowID, "node_id", e.NodeID)
		},
		OnUnsupportedOperator: func(ctx context.Context, e *domain.OperatorEvent) {
			logger.WarnContext(ctx, "unsupported operator",
				"chat_id", e.ChatID, "flow_id", e.FlowID,
				"node_id", e.NodeID, "operator", e.Operator, "variable", e.Variable)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			attrs := []any{
				"chat_id", e.ChatID, "flow_id", e.FlowID,
				"signal", e.Signal, "steps", e.Steps,
			}
			if e.Reason != "" {
				attrs = append(attrs, "reason", e.Reason)
			}
			if e.Err != nil {
				logger.ErrorContext(ctx, "transition", append(attrs, "err", e.Err)...)
				return
			}
			logger.InfoContext(ctx, "transition", attrs...)
		},
	}
}
