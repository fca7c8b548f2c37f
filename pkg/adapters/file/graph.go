package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/ramal/internal/compiler"
	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/domain"
)

var docExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// GraphStore implements ports.GraphStore, ports.FlowLister and
// ports.GraphWriter over a directory of flow documents. The directory is
// read on every call; caching is the registry's job.
type GraphStore struct {
	Dir    string
	logger *slog.Logger
}

// NewGraphStore creates a store over dir. Unparseable documents are
// skipped and reported to logger.
func NewGraphStore(dir string, logger *slog.Logger) *GraphStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &GraphStore{Dir: dir, logger: logger}
}

type document struct {
	path  string
	flow  domain.FlowDefinition
	nodes []domain.Node
}

// scan parses every document in the directory, keyed by flow ID.
// A flow declared by two files is reported and the first (by name) wins.
func (s *GraphStore) scan() (map[string]document, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read flow directory: %w", err)
	}

	docs := make(map[string]document)
	for _, e := range entries {
		if e.IsDir() || !docExts[filepath.Ext(e.Name())] || strings.HasPrefix(e.Name(), "tmp-") {
			continue
		}
		p := filepath.Join(s.Dir, e.Name())
		doc, err := parseFile(p)
		if err != nil {
			s.logger.Warn("skipping flow document", "path", p, "err", err)
			continue
		}
		if prev, dup := docs[doc.flow.ID]; dup {
			s.logger.Warn("duplicate flow id", "flow_id", doc.flow.ID, "path", p, "kept", prev.path)
			continue
		}
		docs[doc.flow.ID] = doc
	}
	return docs, nil
}

func parseFile(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	flow, nodes, err := compiler.ParseDocument(data)
	if err != nil {
		return document{}, err
	}
	return document{path: path, flow: flow, nodes: nodes}, nil
}

func (s *GraphStore) find(flowID string) (document, error) {
	docs, err := s.scan()
	if err != nil {
		return document{}, err
	}
	doc, ok := docs[flowID]
	if !ok {
		return document{}, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, flowID)
	}
	return doc, nil
}

// GetFlow returns the flow declared in the directory.
func (s *GraphStore) GetFlow(ctx context.Context, flowID string) (*domain.FlowDefinition, error) {
	doc, err := s.find(flowID)
	if err != nil {
		return nil, err
	}
	flow := doc.flow
	return &flow, nil
}

// GetNodes returns the nodes of the flow.
func (s *GraphStore) GetNodes(ctx context.Context, flowID string) ([]domain.Node, error) {
	doc, err := s.find(flowID)
	if err != nil {
		return nil, err
	}
	return doc.nodes, nil
}

// ListFlows returns every parseable flow, sorted by ID.
func (s *GraphStore) ListFlows(ctx context.Context) ([]domain.FlowDefinition, error) {
	docs, err := s.scan()
	if err != nil {
		return nil, err
	}
	flows := make([]domain.FlowDefinition, 0, len(docs))
	for _, d := range docs {
		flows = append(flows, d.flow)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].ID < flows[j].ID })
	return flows, nil
}

// PutFlow writes the flow as <flowID>.yaml, replacing the file that
// previously declared it.
func (s *GraphStore) PutFlow(ctx context.Context, flow domain.FlowDefinition, nodes []domain.Node) error {
	if flow.ID == "" {
		return errors.New("flow id is required")
	}
	data, err := compiler.MarshalDocument(flow, nodes)
	if err != nil {
		return fmt.Errorf("marshal flow %s: %w", flow.ID, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("ensure flow directory: %w", err)
	}

	dest := filepath.Join(s.Dir, flow.ID+".yaml")
	if prev, err := s.find(flow.ID); err == nil && prev.path != dest {
		if err := os.Remove(prev.path); err != nil {
			return fmt.Errorf("replace flow %s: %w", flow.ID, err)
		}
	}
	return writeAtomic(s.Dir, dest, data)
}
