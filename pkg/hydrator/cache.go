package hydrator

import (
	"context"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/segcache"
	"github.com/sirupsen/logrus"
)

const unlockTimeout = 5 * time.Second

// PayloadCache is a shared store of validated payloads, consulted before the
// network. Lock serialises downloads of one segment across instances.
type PayloadCache interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte, source string) error
	Lock(ctx context.Context, id string) (unlock func(), err error)
}

type redisPayloadCache struct {
	log   logrus.FieldLogger
	cache *segcache.Cache
}

// NewRedisPayloadCache adapts a segcache.Cache.
func NewRedisPayloadCache(log logrus.FieldLogger, cache *segcache.Cache) PayloadCache {
	return &redisPayloadCache{
		log:   log.WithField("component", "payload_cache"),
		cache: cache,
	}
}

func (r *redisPayloadCache) Get(ctx context.Context, id string) ([]byte, error) {
	data, entry, err := r.cache.Get(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"segment":   id,
		"source":    entry.Source,
		"stored_at": entry.StoredAt,
	}).Debug("Payload cache hit")

	return data, nil
}

func (r *redisPayloadCache) Put(ctx context.Context, id string, data []byte, source string) error {
	return r.cache.Set(ctx, id, data, source)
}

func (r *redisPayloadCache) Lock(ctx context.Context, id string) (func(), error) {
	lock, err := r.cache.AcquireLock(ctx, id)
	if err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()

		if err := lock.Unlock(ctx); err != nil {
			r.log.WithError(err).WithField("segment", id).Warn("Failed to release segment lock")
		}
	}, nil
}
