// Package registry compiles flows from a graph store into validated,
// immutable graphs and caches them per flow.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
)

type entry struct {
	graph    *domain.Graph
	loadedAt time.Time
}

// Catalog manages the compiled flows.
type Catalog struct {
	store  ports.GraphStore
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	graphs map[string]entry
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithTTL makes cached graphs expire. Zero keeps them until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) {
		c.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// NewCatalog creates a catalog over a graph store.
func NewCatalog(store ports.GraphStore, opts ...Option) *Catalog {
	c := &Catalog{
		store:  store,
		graphs: make(map[string]entry),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c
}

// Graph returns the compiled graph of a flow, whatever its status.
// In-flight sessions of archived flows keep being served through it.
func (c *Catalog) Graph(ctx context.Context, flowID string) (*domain.Graph, error) {
	if g, ok := c.cached(flowID); ok {
		return g, nil
	}
	return c.refresh(ctx, flowID)
}

// ForStart returns the graph of a flow that can accept new sessions.
// Returns domain.ErrFlowNotActive unless the flow is active.
//
// The flow status is always read from the store, so publishing or
// archiving a flow takes effect for the next chat without invalidation.
// The cached graph is reused only while its status and version match.
func (c *Catalog) ForStart(ctx context.Context, flowID string) (*domain.Graph, error) {
	flow, err := c.store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", flowID, err)
	}
	if flow.Status != domain.FlowActive {
		return nil, fmt.Errorf("flow %s is %s: %w", flowID, flow.Status, domain.ErrFlowNotActive)
	}

	g, ok := c.cached(flowID)
	if !ok || g.Flow.Status != flow.Status || g.Flow.Version != flow.Version {
		if g, err = c.refresh(ctx, flowID); err != nil {
			return nil, err
		}
	}
	if g.Flow.Status != domain.FlowActive {
		return nil, fmt.Errorf("flow %s is %s: %w", flowID, g.Flow.Status, domain.ErrFlowNotActive)
	}
	return g, nil
}

func (c *Catalog) cached(flowID string) (*domain.Graph, bool) {
	c.mu.RLock()
	e, ok := c.graphs[flowID]
	c.mu.RUnlock()
	if !ok || (c.ttl > 0 && c.now().Sub(e.loadedAt) >= c.ttl) {
		return nil, false
	}
	return e.graph, true
}

func (c *Catalog) refresh(ctx context.Context, flowID string) (*domain.Graph, error) {
	g, err := c.Compile(ctx, flowID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.graphs[flowID] = entry{graph: g, loadedAt: c.now()}
	c.mu.Unlock()
	return g, nil
}

// Compile loads and validates a flow without touching the cache.
// Stores implementing ports.SnapshotReader are read in one snapshot.
func (c *Catalog) Compile(ctx context.Context, flowID string) (*domain.Graph, error) {
	flow, nodes, err := c.load(ctx, flowID)
	if err != nil {
		return nil, err
	}
	g, err := domain.NewGraph(*flow, nodes)
	if err != nil {
		c.logger.Error("flow failed validation", "flow_id", flowID, "err", err)
		return nil, err
	}
	c.logger.Debug("flow compiled", "flow_id", flowID, "nodes", g.Len(), "version", flow.Version)
	return g, nil
}

func (c *Catalog) load(ctx context.Context, flowID string) (*domain.FlowDefinition, []domain.Node, error) {
	if snap, ok := c.store.(ports.SnapshotReader); ok {
		flow, nodes, err := snap.Snapshot(ctx, flowID)
		if err != nil {
			return nil, nil, fmt.Errorf("load flow %s: %w", flowID, err)
		}
		return flow, nodes, nil
	}
	flow, err := c.store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, nil, fmt.Errorf("load flow %s: %w", flowID, err)
	}
	nodes, err := c.store.GetNodes(ctx, flowID)
	if err != nil {
		return nil, nil, fmt.Errorf("load nodes of flow %s: %w", flowID, err)
	}
	return flow, nodes, nil
}

// Invalidate drops the cached graph of a flow, e.g. after a republish.
func (c *Catalog) Invalidate(flowID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.graphs, flowID)
}

// InvalidateAll drops every cached graph.
func (c *Catalog) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs = make(map[string]entry)
}

// Flows lists the flows of the store when it supports listing.
func (c *Catalog) Flows(ctx context.Context) ([]domain.FlowDefinition, error) {
	lister, ok := c.store.(ports.FlowLister)
	if !ok {
		return nil, fmt.Errorf("graph store %T cannot list flows", c.store)
	}
	return lister.ListFlows(ctx)
}

// Store returns the underlying graph store.
func (c *Catalog) Store() ports.GraphStore {
	return c.store
}
