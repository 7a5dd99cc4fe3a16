package segcache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethpandaops/ephemeris/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "ephemeris:segment:"

func newTestCache(t *testing.T) (*Cache, *redis.Client, func(time.Duration)) {
	t.Helper()

	mr, client := testutil.NewMiniredisClient(t)

	c := New(client, testPrefix, &Config{TTL: time.Hour, LockTTL: 30 * time.Second})

	return c, client, mr.FastForward
}

func TestCache_SetGet(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	payload := []byte(strings.Repeat("p", 6000))
	require.NoError(t, c.Set(ctx, "seplm30", payload, "https://mirror/seplm30.se1"))

	data, entry, err := c.Get(ctx, "seplm30")
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, payload, data)
	assert.Equal(t, "seplm30", entry.Segment)
	assert.Equal(t, 6000, entry.Size)
	assert.Equal(t, "https://mirror/seplm30.se1", entry.Source)
	assert.Len(t, entry.SHA256, 64)
}

func TestCache_Miss(t *testing.T) {
	c, _, _ := newTestCache(t)

	data, entry, err := c.Get(context.Background(), "semom36")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Nil(t, entry)
}

func TestCache_CorruptPayloadIsMiss(t *testing.T) {
	c, client, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "seplm30", []byte("original"), "test"))
	require.NoError(t, client.Set(ctx, testPrefix+"seplm30", "tampered", 0).Err())

	data, entry, err := c.Get(ctx, "seplm30")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Nil(t, entry)

	_, err = client.Get(ctx, testPrefix+"seplm30").Result()
	require.ErrorIs(t, err, redis.Nil, "corrupt payload is removed")
}

func TestCache_Expiry(t *testing.T) {
	c, _, fastForward := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sepl_12", []byte("x"), "test"))

	fastForward(2 * time.Hour)

	data, _, err := c.Get(ctx, "sepl_12")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestCache_Invalidate(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "sepl_12", []byte("x"), "test"))
	require.NoError(t, c.Invalidate(ctx, "sepl_12"))

	data, _, err := c.Get(ctx, "sepl_12")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestCache_AcquireLock(t *testing.T) {
	c, client, _ := newTestCache(t)
	ctx := context.Background()

	lock, err := c.AcquireLock(ctx, "seplm30")
	require.NoError(t, err)

	val, err := client.Get(ctx, testPrefix+"seplm30:lock").Result()
	require.NoError(t, err)
	assert.NotEmpty(t, val)

	require.NoError(t, lock.Unlock(ctx))

	_, err = client.Get(ctx, testPrefix+"seplm30:lock").Result()
	require.ErrorIs(t, err, redis.Nil)
}

func TestCache_AcquireLock_BlocksWhenHeld(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	lock1, err := c.AcquireLock(ctx, "seplm30")
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	lock2, err := c.AcquireLock(shortCtx, "seplm30")
	require.Error(t, err)
	assert.Nil(t, lock2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, lock1.Unlock(ctx))

	lock3, err := c.AcquireLock(ctx, "seplm30")
	require.NoError(t, err)
	require.NoError(t, lock3.Unlock(ctx))
}

func TestCache_AcquireLock_ExpiresAfterTTL(t *testing.T) {
	c, _, fastForward := newTestCache(t)
	ctx := context.Background()

	lock1, err := c.AcquireLock(ctx, "seplm30")
	require.NoError(t, err)

	fastForward(31 * time.Second)

	lock2, err := c.AcquireLock(ctx, "seplm30")
	require.NoError(t, err)

	require.ErrorIs(t, lock1.Unlock(ctx), ErrLockNotHeld, "expired holder cannot release the new lock")
	require.NoError(t, lock2.Unlock(ctx))
}

func TestCache_AcquireLock_Concurrent(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		holders int
		maxHeld int
		success int
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			lockCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()

			lock, err := c.AcquireLock(lockCtx, "contested")
			if err != nil {
				return
			}

			mu.Lock()
			holders++
			success++
			if holders > maxHeld {
				maxHeld = holders
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()

			_ = lock.Unlock(ctx)
		}()
	}

	wg.Wait()

	assert.Positive(t, success)
	assert.Equal(t, 1, maxHeld, "lock is exclusive")
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, (&Config{TTL: 0, LockTTL: time.Minute}).Validate())
	require.ErrorIs(t, (&Config{TTL: -time.Second, LockTTL: time.Minute}).Validate(), ErrInvalidTTL)
	require.ErrorIs(t, (&Config{LockTTL: 0}).Validate(), ErrInvalidLockTTL)
}
