package ports

import (
	"context"

	"github.com/aretw0/ramal/pkg/domain"
)

// GraphStore defines how the engine retrieves flow definitions.
// Implementations must return a consistent snapshot of a flow: nodes are
// never added or removed between GetFlow and GetNodes of the same publish.
type GraphStore interface {
	// GetFlow returns the flow definition.
	// Returns domain.ErrFlowNotFound if the flow does not exist.
	GetFlow(ctx context.Context, flowID string) (*domain.FlowDefinition, error)

	// GetNodes returns every node owned by the flow.
	// Returns domain.ErrFlowNotFound if the flow does not exist.
	GetNodes(ctx context.Context, flowID string) ([]domain.Node, error)
}

// SnapshotReader is implemented by graph stores that can read a flow and
// its nodes in one consistent read, e.g. a single database transaction.
type SnapshotReader interface {
	Snapshot(ctx context.Context, flowID string) (*domain.FlowDefinition, []domain.Node, error)
}

// FlowLister is implemented by graph stores that can enumerate their flows.
type FlowLister interface {
	ListFlows(ctx context.Context) ([]domain.FlowDefinition, error)
}

// GraphWriter is implemented by graph stores that accept published flows.
// PutFlow replaces the flow and all of its nodes atomically.
type GraphWriter interface {
	PutFlow(ctx context.Context, flow domain.FlowDefinition, nodes []domain.Node) error
}
