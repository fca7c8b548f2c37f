// Package variables binds user replies into the session variable bag and
// renders message templates from session variables and entity lookups.
package variables

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/condition"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
)

// placeholder matches {{ path }} and {{ path | default text }}.
var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*(?:\|\s*([^}]*?))?\s*\}\}`)

// Extractor derives variables from replies and resolves template paths.
type Extractor struct {
	resolver ports.EntityResolver
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithResolver sets the entity resolver used for paths missing from the session.
func WithResolver(r ports.EntityResolver) Option {
	return func(x *Extractor) {
		x.resolver = r
	}
}

// WithLogger sets the logger used to report resolver failures.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Extractor) {
		x.logger = logger
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{}
	for _, opt := range opts {
		opt(x)
	}
	if x.logger == nil {
		x.logger = logging.NewNop()
	}
	return x
}

// Bind writes a reply into the variable bag. The raw reply always lands in
// user_response and, when name is set, in name as well.
func Bind(vars map[string]any, name string, reply string) {
	vars[domain.UserResponseKey] = reply
	if name != "" && name != domain.UserResponseKey {
		vars[name] = reply
	}
}

// Lookup returns the value of path for the session. Session variables win
// over the entity resolver. Resolver failures are logged and reported as absent.
func (x *Extractor) Lookup(ctx context.Context, s *domain.Session, path string) (any, bool) {
	if v, ok := s.Variables[path]; ok {
		return v, true
	}
	if x.resolver == nil || s.EntityID == "" {
		return nil, false
	}
	v, ok, err := x.resolver.Resolve(ctx, path, s.EntityID)
	if err != nil {
		x.logger.Warn("entity resolution failed",
			"chat_id", s.ChatID,
			"entity_id", s.EntityID,
			"path", path,
			"err", err)
		return nil, false
	}
	return v, ok
}

// Render substitutes every placeholder of tmpl. Absent values render as the
// declared default, or as an empty string. Render never fails.
func (x *Extractor) Render(ctx context.Context, s *domain.Session, tmpl string) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		path, def := groups[1], strings.TrimSpace(groups[2])
		v, ok := x.Lookup(ctx, s, path)
		if !ok || v == nil {
			return def
		}
		if str := condition.String(v); str != "" {
			return str
		}
		return def
	})
}

// Paths lists the placeholder paths referenced by tmpl, in order of appearance.
func Paths(tmpl string) []string {
	var paths []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		paths = append(paths, m[1])
	}
	return paths
}
