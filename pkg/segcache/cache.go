// Package segcache provides a Redis-backed cache of validated segment payloads
package segcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when unlocking a lock that has expired or been taken over
var ErrLockNotHeld = errors.New("segment lock not held")

// lockPollInterval is how often a blocked AcquireLock retries
const lockPollInterval = 50 * time.Millisecond

// Entry describes a cached payload
type Entry struct {
	Segment  string    `json:"segment"`
	SHA256   string    `json:"sha256"`
	Size     int       `json:"size"`
	Source   string    `json:"source"`
	StoredAt time.Time `json:"stored_at"`
}

// Cache stores segment payloads in Redis so several instances share one download
type Cache struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
	lockTTL     time.Duration
}

// New creates a cache. keyPrefix is prepended to every key.
func New(redisClient *redis.Client, keyPrefix string, cfg *Config) *Cache {
	return &Cache{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		ttl:         cfg.TTL,
		lockTTL:     cfg.LockTTL,
	}
}

func (c *Cache) payloadKey(id string) string {
	return c.keyPrefix + id
}

func (c *Cache) metaKey(id string) string {
	return c.keyPrefix + id + ":meta"
}

func (c *Cache) lockKey(id string) string {
	return c.keyPrefix + id + ":lock"
}

// Get retrieves a payload. A miss, or a payload whose checksum no longer
// matches its metadata, returns nil with no error.
func (c *Cache) Get(ctx context.Context, id string) ([]byte, *Entry, error) {
	data, err := c.redisClient.Get(ctx, c.payloadKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, nil // Cache miss
		}
		return nil, nil, err
	}

	raw, err := c.redisClient.Get(ctx, c.metaKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, nil, err
	}

	if entry.SHA256 != checksum(data) || entry.Size != len(data) {
		_ = c.Invalidate(ctx, id)
		return nil, nil, nil
	}

	return data, &entry, nil
}

// Set stores a payload and its metadata together
func (c *Cache) Set(ctx context.Context, id string, data []byte, source string) error {
	entry := Entry{
		Segment:  id,
		SHA256:   checksum(data),
		Size:     len(data),
		Source:   source,
		StoredAt: time.Now().UTC(),
	}

	meta, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = c.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.payloadKey(id), data, c.ttl)
		pipe.Set(ctx, c.metaKey(id), meta, c.ttl)

		return nil
	})

	return err
}

// Invalidate removes a payload from the cache
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	return c.redisClient.Del(ctx, c.payloadKey(id), c.metaKey(id)).Err()
}

// Lock is a held per-segment download lock
type Lock struct {
	cache *Cache
	key   string
	token string
}

//nolint:gochecknoglobals // compiled once
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock blocks until the segment's download lock is free or ctx is done.
// The lock expires on its own after the configured TTL.
func (c *Cache) AcquireLock(ctx context.Context, id string) (*Lock, error) {
	token := uuid.NewString()
	key := c.lockKey(id)

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := c.redisClient.SetNX(ctx, key, token, c.lockTTL).Result()
		if err != nil {
			return nil, err
		}

		if ok {
			return &Lock{cache: c, key: key, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Unlock releases the lock if it is still held by this holder
func (l *Lock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.cache.redisClient, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrLockNotHeld
	}

	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
