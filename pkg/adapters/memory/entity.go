package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/aretw0/ramal/pkg/variables"
)

// EntityStore implements ports.EntityResolver over in-memory records.
// Paths are dotted; a record may hold nested maps. A path may also be
// prefixed with the entity type (e.g. "debtor.name" on a debtor record).
type EntityStore struct {
	mu      sync.RWMutex
	prefix  string
	records map[string]map[string]any
}

// NewEntityStore creates a resolver. prefix is stripped from paths when present.
func NewEntityStore(prefix string) *EntityStore {
	return &EntityStore{
		prefix:  prefix,
		records: make(map[string]map[string]any),
	}
}

// Put stores or replaces an entity record.
func (s *EntityStore) Put(entityID string, record map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[entityID] = record
}

// Resolve walks the record along the dotted path.
func (s *EntityStore) Resolve(ctx context.Context, path string, entityID string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[entityID]
	if !ok {
		return nil, false, nil
	}
	if s.prefix != "" {
		path = strings.TrimPrefix(path, s.prefix+".")
	}
	return variables.Walk(record, path)
}
