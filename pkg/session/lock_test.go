package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/ramal/pkg/domain"
	"github.com/stretchr/testify/assert"
)

type nopStore struct{}

func (nopStore) Save(context.Context, *domain.Session) error { return nil }
func (nopStore) Load(context.Context, string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}
func (nopStore) Delete(context.Context, string) error   { return nil }
func (nopStore) List(context.Context) ([]string, error) { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		chat := fmt.Sprintf("chat-%d", i)
		_ = mgr.Save(ctx, &domain.Session{ChatID: chat, Status: domain.SessionActive})
		_ = mgr.Clear(ctx, chat)
	}

	assert.Empty(t, mgr.locks, "per-chat locks must be released once unused")
}
