package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ramal/pkg/domain"
)

func TestConsole_Send(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	ctx := context.Background()

	require.NoError(t, c.Send(ctx, "c1", domain.Effect{Type: domain.EffectText, Text: "Hola Ana"}))
	require.NoError(t, c.Send(ctx, "c1", domain.Effect{
		Type:    domain.EffectMenu,
		Text:    "¿Aceptas?",
		Options: []domain.EffectOption{{ID: "1", Label: "ACEPTO"}, {ID: "2", Label: "NO ACEPTO"}},
	}))
	require.NoError(t, c.Send(ctx, "c1", domain.Effect{Type: domain.EffectSystem, Text: "Te estamos conectando con un asesor."}))
	require.NoError(t, c.AssignToQueue(ctx, "c1", "requested"))

	assert.Equal(t, strings.Join([]string{
		"Hola Ana",
		"¿Aceptas?",
		"  1) ACEPTO",
		"  2) NO ACEPTO",
		"* Te estamos conectando con un asesor.",
		"[handoff] chat assigned to agent queue (reason: requested)",
		"",
	}, "\n"), out.String())
}

func TestConsole_RendererAndPrefix(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out,
		WithConsoleRenderer(func(s string) (string, error) { return strings.ToUpper(s) + "\n\n", nil }),
		WithChatPrefix(),
	)

	require.NoError(t, c.Send(context.Background(), "c9", domain.Effect{Type: domain.EffectText, Text: "hola"}))
	assert.Equal(t, "[c9] HOLA\n[c9] \n", out.String())
}

func TestConsole_RendererError(t *testing.T) {
	c := NewConsole(&bytes.Buffer{}, WithConsoleRenderer(func(string) (string, error) {
		return "", errors.New("bad markdown")
	}))
	err := c.Send(context.Background(), "c1", domain.Effect{Type: domain.EffectText, Text: "x"})
	assert.ErrorContains(t, err, "bad markdown")
}
