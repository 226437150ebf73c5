package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by TryAcquire when another owner holds the lock.
var ErrLockHeld = errors.New("lock held by another owner")

// Lock is a single-key lease (SET NX PX) used to keep one escalation sweep
// running across all relay processes.
type Lock struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

func NewLock(client *goredis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: key, ttl: ttl}
}

var releaseScript = goredis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// TryAcquire takes the lease and returns a release func. Release only
// deletes the key if this owner still holds it.
func (l *Lock) TryAcquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}, nil
}
