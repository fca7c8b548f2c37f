// Package testutils holds fixtures shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ramal/internal/compiler"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/dsl"
)

// PolicyFlowID is the ID of the data-policy fixture flow.
const PolicyFlowID = "politica-datos"

// PolicyFlow builds the data-policy flow used across tests:
//
//	welcome (buttons) -> check -> options (menu) -> balance | agent (handoff)
//	                          \-> rejected
func PolicyFlow() *dsl.Builder {
	b := dsl.New(PolicyFlowID).Name("Política de datos")
	b.Message("welcome", "Hola {{ debtor.name | cliente }}, ¿aceptas la política de tratamiento de datos?").
		Buttons("Sí", "No").
		ReplyTo("check")
	b.Condition("check").
		When(domain.UserResponseKey, "contains_ignore_case", "sí", "options").
		When(domain.UserResponseKey, "contains_ignore_case", "si", "options").
		Default("rejected")
	b.Menu("options", "¿Qué deseas hacer?").
		Option("", "Consultar saldo", "balance").
		Option("", "Hablar con un asesor", "agent")
	b.Message("balance", "Tu saldo pendiente es {{ debtor.balance | 0 }}.")
	b.Message("agent", "Un asesor te atenderá en breve.").Handoff("")
	b.Message("rejected", "Entendido, sin tu autorización no podemos continuar.")
	return b
}

// PolicyGraph compiles PolicyFlow.
func PolicyGraph(t *testing.T) *domain.Graph {
	t.Helper()
	g, err := PolicyFlow().Graph()
	require.NoError(t, err)
	return g
}

// WriteFlowDir writes each flow as a YAML document in a fresh temp
// directory and returns the directory.
func WriteFlowDir(t *testing.T, flows ...*dsl.Builder) string {
	t.Helper()
	dir := t.TempDir()
	for _, b := range flows {
		data, err := compiler.MarshalDocument(b.Flow(), b.Nodes())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, b.Flow().ID+".yaml"), data, 0o644))
	}
	return dir
}

// NewRedis starts a miniredis server for the test and returns a client to it.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
