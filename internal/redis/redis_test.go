package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"campus-relay/internal/domain/user"
	"campus-relay/internal/repository"
	relay_errors "campus-relay/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRateLimiterFixedWindow(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()
	limiter := NewRateLimiter(client, RateLimitConfig{MessageLimit: 2, MessageWindow: time.Minute})
	sender := uuid.New()

	for i := 0; i < 2; i++ {
		ok, err := limiter.AllowSend(ctx, sender)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	res, err := limiter.AllowMessage(ctx, sender)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	// other senders have their own window
	ok, err := limiter.AllowSend(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.AllowSend(ctx, sender)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockSingleOwner(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()
	lock := NewLock(client, "lock:escalation", 30*time.Second)
	other := NewLock(client, "lock:escalation", 30*time.Second)

	release, err := lock.TryAcquire(ctx)
	require.NoError(t, err)

	_, err = other.TryAcquire(ctx)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))
	releaseOther, err := other.TryAcquire(ctx)
	require.NoError(t, err)

	// a stale release from the first owner must not free the second owner's lease
	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists("lock:escalation"))
	require.NoError(t, releaseOther(ctx))

	_, err = lock.TryAcquire(ctx)
	require.NoError(t, err)
	mr.FastForward(31 * time.Second)
	_, err = other.TryAcquire(ctx)
	assert.NoError(t, err)
}

func TestBrokerDeliversToPatternSubscribers(t *testing.T) {
	mr, client := newTestClient(t)
	broker := NewBroker(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan error, 1)
	go func() {
		done <- broker.Subscribe(ctx, "channel:user:*", func(channel string, payload []byte) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, channel+"="+string(payload))
		})
	}()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() > 0 }, time.Second, 10*time.Millisecond)

	id := uuid.New()
	require.NoError(t, broker.Publish(ctx, "channel:user:"+id.String(), []byte("hello")))
	require.NoError(t, broker.Publish(ctx, "channel:conversation:x", []byte("ignored")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "channel:user:"+id.String()+"=hello", got[0])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

type countingDirectory struct {
	*repository.MemoryDirectory
	profileCalls int
}

func (d *countingDirectory) GetProfile(ctx context.Context, id uuid.UUID) (user.Profile, error) {
	d.profileCalls++
	return d.MemoryDirectory.GetProfile(ctx, id)
}

func TestCachedDirectoryReadThrough(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()
	store := repository.NewMemoryStore()
	backing := &countingDirectory{MemoryDirectory: store.Directory}
	cache := NewCachedDirectory(client, DefaultCacheConfig(), backing, nil)

	profile := user.Profile{ID: uuid.New(), DisplayName: "Ada", Email: "ada@campus.edu"}
	store.AddUser(profile)

	for i := 0; i < 3; i++ {
		got, err := cache.GetProfile(ctx, profile.ID)
		require.NoError(t, err)
		assert.Equal(t, profile, got)
	}
	assert.Equal(t, 1, backing.profileCalls)
	assert.True(t, mr.Exists(userKey(profile.ID)))

	mr.FastForward(DefaultCacheConfig().UserTTL + time.Second)
	_, err := cache.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.profileCalls)

	_, err = cache.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)

	// redis outage falls through to the directory
	mr.Close()
	got, err := cache.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.DisplayName)
}
