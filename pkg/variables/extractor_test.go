package variables

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestBind_DoubleWrite(t *testing.T) {
	vars := map[string]any{}
	Bind(vars, "dni", "12345678")
	assert.Equal(t, "12345678", vars[domain.UserResponseKey])
	assert.Equal(t, "12345678", vars["dni"])

	Bind(vars, "", "Si, acepto")
	assert.Equal(t, "Si, acepto", vars[domain.UserResponseKey])
	assert.Equal(t, "12345678", vars["dni"])
}

func TestRender(t *testing.T) {
	debtors := map[string]map[string]any{
		"d-1": {"debtor.name": "Ana", "debtor.company": "ACME", "debtor.balance": 1520.5},
	}
	resolver := ports.EntityResolverFunc(func(_ context.Context, path, entityID string) (any, bool, error) {
		if path == "debtor.broken" {
			return nil, false, errors.New("backend down")
		}
		v, ok := debtors[entityID][path]
		return v, ok, nil
	})
	x := New(WithResolver(resolver))

	s := &domain.Session{ChatID: "c", EntityID: "d-1", Variables: map[string]any{"user_response": "si"}}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"plain", "Hola", "Hola"},
		{"entity", "Hola {{ debtor.name }} de {{debtor.company}}", "Hola Ana de ACME"},
		{"number", "Saldo: {{ debtor.balance }}", "Saldo: 1520.5"},
		{"session wins", "Dijiste {{ user_response }}", "Dijiste si"},
		{"default", "Hola {{ debtor.nickname | cliente }}", "Hola cliente"},
		{"absent no default", "[{{ nope }}]", "[]"},
		{"resolver error uses default", "{{ debtor.broken | n/a }}", "n/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, x.Render(context.Background(), s, tt.tmpl))
		})
	}
}

func TestRender_NoEntity(t *testing.T) {
	x := New(WithResolver(ports.EntityResolverFunc(func(context.Context, string, string) (any, bool, error) {
		t.Fatal("resolver must not be called without an entity")
		return nil, false, nil
	})))
	s := &domain.Session{Variables: map[string]any{}}
	assert.Equal(t, "Hola amigo", x.Render(context.Background(), s, "Hola {{ debtor.name | amigo }}"))
}

func TestExtractor_Logger(t *testing.T) {
	failing := ports.EntityResolverFunc(func(context.Context, string, string) (any, bool, error) {
		return nil, false, errors.New("backend down")
	})
	s := &domain.Session{EntityID: "d-1", Variables: map[string]any{}}

	x := New(WithResolver(failing))
	assert.NotNil(t, x.logger)
	assert.Equal(t, "n/a", x.Render(context.Background(), s, "{{ debtor.name | n/a }}"))

	var buf bytes.Buffer
	x = New(WithResolver(failing), WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	x.Render(context.Background(), s, "{{ debtor.name }}")
	assert.Contains(t, buf.String(), "entity resolution failed")
}

func TestPaths(t *testing.T) {
	assert.Equal(t, []string{"a.b", "c"}, Paths("{{ a.b }} y {{c|x}}"))
	assert.Nil(t, Paths("none"))
}
