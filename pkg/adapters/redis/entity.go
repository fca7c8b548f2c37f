package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/ramal/pkg/variables"
)

// EntityResolver implements ports.EntityResolver over JSON documents
// stored at keyPrefix+entityID, typically written by the CRM when a debt
// is assigned to a campaign.
type EntityResolver struct {
	client     backend.UniversalClient
	keyPrefix  string
	pathPrefix string
}

// NewEntityResolver creates a resolver. pathPrefix (e.g. "debtor") is
// stripped from template paths before walking the document.
func NewEntityResolver(client backend.UniversalClient, keyPrefix, pathPrefix string) *EntityResolver {
	return &EntityResolver{client: client, keyPrefix: keyPrefix, pathPrefix: pathPrefix}
}

// Put stores an entity document.
func (r *EntityResolver) Put(ctx context.Context, entityID string, record map[string]any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal entity %s: %w", entityID, err)
	}
	return r.client.Set(ctx, r.keyPrefix+entityID, data, 0).Err()
}

// Resolve reads the entity document and walks path inside it.
func (r *EntityResolver) Resolve(ctx context.Context, path string, entityID string) (any, bool, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+entityID).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load entity %s: %w", entityID, err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, fmt.Errorf("decode entity %s: %w", entityID, err)
	}
	if r.pathPrefix != "" {
		path = strings.TrimPrefix(path, r.pathPrefix+".")
	}
	return variables.Walk(record, path)
}
