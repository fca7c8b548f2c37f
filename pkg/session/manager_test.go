package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/ramal/pkg/adapters/memory"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
	"github.com/aretw0/ramal/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke races if locking is missing.
type slowStore struct {
	*memory.SessionStore
}

func (s slowStore) Load(ctx context.Context, chatID string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond)
	return s.SessionStore.Load(ctx, chatID)
}

func (s slowStore) Save(ctx context.Context, sess *domain.Session) error {
	time.Sleep(2 * time.Millisecond)
	return s.SessionStore.Save(ctx, sess)
}

func newSession(chatID string) *domain.Session {
	return domain.NewSession(chatID, domain.FlowDefinition{ID: "f", StartNodeID: "start"}, "", time.Now())
}

func TestManager_NoLostUpdates(t *testing.T) {
	store := slowStore{memory.NewSessionStore()}
	mgr := session.NewManager(store)
	ctx := context.Background()
	require.NoError(t, mgr.Save(ctx, newSession("race")))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.WithLock(ctx, "race", func(ctx context.Context, tx *session.Tx) error {
				s, err := tx.Load(ctx)
				if err != nil {
					return err
				}
				s.BotTurns++
				return tx.Save(ctx, s)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := mgr.Load(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, writers, s.BotTurns)
}

func TestManager_DifferentChatsRunInParallel(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	inA := make(chan struct{})
	releaseA := make(chan struct{})
	go func() {
		_ = mgr.WithLock(ctx, "a", func(context.Context, *session.Tx) error {
			close(inA)
			<-releaseA
			return nil
		})
	}()
	<-inA

	done := make(chan struct{})
	go func() {
		_ = mgr.WithLock(ctx, "b", func(context.Context, *session.Tx) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chat b was blocked by chat a")
	}
	close(releaseA)
}

func TestManager_SaveClosedClears(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()

	s := newSession("c")
	require.NoError(t, mgr.Save(ctx, s))
	ok, err := mgr.Exists(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, status := range []domain.SessionStatus{domain.SessionHandedOff, domain.SessionCompleted} {
		require.NoError(t, mgr.Save(ctx, s))
		closed := s.Clone()
		closed.Status = status
		require.NoError(t, mgr.Save(ctx, closed))

		_, err = mgr.Load(ctx, "c")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, string(status))
	}
}

func TestManager_TxRejectsForeignSession(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	err := mgr.WithLock(context.Background(), "a", func(ctx context.Context, tx *session.Tx) error {
		return tx.Save(ctx, newSession("b"))
	})
	assert.Error(t, err)
}

func TestManager_Idle(t *testing.T) {
	mgr := session.NewManager(memory.NewSessionStore())
	ctx := context.Background()
	now := time.Now()

	stale := newSession("stale")
	stale.AwaitingInput = true
	stale.LastAdvancedAt = now.Add(-2 * time.Hour)
	fresh := newSession("fresh")
	fresh.AwaitingInput = true
	fresh.LastAdvancedAt = now
	require.NoError(t, mgr.Save(ctx, stale))
	require.NoError(t, mgr.Save(ctx, fresh))

	idle, err := mgr.Idle(ctx, time.Hour, now)
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, "stale", idle[0].ChatID)
}

type fakeLocker struct {
	mu       sync.Mutex
	keys     []string
	unlocked int
	fail     bool
}

func (l *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	if l.fail {
		return nil, errors.New("redis down")
	}
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.unlocked++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &fakeLocker{}
	mgr := session.NewManager(memory.NewSessionStore(), session.WithLocker(locker))
	ctx := context.Background()

	require.NoError(t, mgr.Save(ctx, newSession("c")))
	assert.Equal(t, []string{"chat:c"}, locker.keys)
	assert.Equal(t, 1, locker.unlocked)

	locker.fail = true
	err := mgr.Save(ctx, newSession("c"))
	assert.ErrorContains(t, err, "distributed lock")
}
