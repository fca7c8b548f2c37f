package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/ramal/pkg/domain"
)

// GraphStore implements ports.GraphStore, ports.FlowLister and
// ports.GraphWriter in memory. Safe for concurrent use.
type GraphStore struct {
	mu    sync.RWMutex
	flows map[string]domain.FlowDefinition
	nodes map[string][]domain.Node
}

// NewGraphStore creates an empty graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		flows: make(map[string]domain.FlowDefinition),
		nodes: make(map[string][]domain.Node),
	}
}

// NewGraphStoreFromGraphs seeds a store with already validated graphs.
func NewGraphStoreFromGraphs(graphs ...*domain.Graph) *GraphStore {
	s := NewGraphStore()
	for _, g := range graphs {
		s.flows[g.Flow.ID] = g.Flow
		s.nodes[g.Flow.ID] = g.Nodes()
	}
	return s
}

// PutFlow replaces the flow and its nodes.
func (s *GraphStore) PutFlow(ctx context.Context, flow domain.FlowDefinition, nodes []domain.Node) error {
	cp := make([]domain.Node, len(nodes))
	copy(cp, nodes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flow.ID] = flow
	s.nodes[flow.ID] = cp
	return nil
}

// GetFlow returns the flow definition.
func (s *GraphStore) GetFlow(ctx context.Context, flowID string) (*domain.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, ok := s.flows[flowID]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return &flow, nil
}

// GetNodes returns the flow's nodes in insertion order.
func (s *GraphStore) GetNodes(ctx context.Context, flowID string) ([]domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes, ok := s.nodes[flowID]
	if !ok {
		if _, known := s.flows[flowID]; !known {
			return nil, domain.ErrFlowNotFound
		}
	}
	out := make([]domain.Node, len(nodes))
	copy(out, nodes)
	return out, nil
}

// ListFlows returns every flow sorted by ID.
func (s *GraphStore) ListFlows(ctx context.Context) ([]domain.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flows := make([]domain.FlowDefinition, 0, len(s.flows))
	for _, f := range s.flows {
		flows = append(flows, f)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].ID < flows[j].ID })
	return flows, nil
}
