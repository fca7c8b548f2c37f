package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/ramal/pkg/ports"
)

// ErrLockLost is returned by an UnlockFunc when the lock had already
// expired or been taken over by another holder.
var ErrLockLost = errors.New("distributed lock no longer held")

// DefaultRetryInterval is the polling interval while a lock is contended.
const DefaultRetryInterval = 50 * time.Millisecond

var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker implements ports.DistributedLocker with SET NX PX. Each
// acquisition stores a random token so only the holder can release it.
type Locker struct {
	client backend.UniversalClient
	prefix string
	retry  time.Duration
}

// NewLocker creates a locker. Keys are stored as prefix+"lock:"+key.
func NewLocker(client backend.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix, retry: DefaultRetryInterval}
}

// WithRetryInterval sets the polling interval and returns the locker.
func (l *Locker) WithRetryInterval(d time.Duration) *Locker {
	if d > 0 {
		l.retry = d
	}
	return l
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				n, err := unlockScript.Run(ctx, l.client, []string{lockKey}, token).Int()
				if err != nil {
					return fmt.Errorf("release lock %s: %w", key, err)
				}
				if n == 0 {
					return ErrLockLost
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
