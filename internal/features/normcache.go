package features

import (
	"context"
	"errors"
	"sync"
	"time"

	domsvc "AlphaPipe/internal/domain/service"
	"AlphaPipe/pkg/cache"
	"AlphaPipe/pkg/logger"
)

const (
	normReadTimeout  = 200 * time.Millisecond
	normWriteTimeout = 500 * time.Millisecond
	normTTL          = 1 * time.Hour
	normOutboxSize   = 256
)

type normWrite struct {
	key   string
	field string
	value float64
}

// RedisNormCache implements NormalizationCache on top of pkg/cache.
// Reads are awaited with a short timeout; writes go through a bounded
// outbox drained by a single goroutine so the critical path never
// blocks. At-most-once per key/field: later writes for a key already
// written are skipped, races across builders lose updates harmlessly.
type RedisNormCache struct {
	svc    cache.Service
	log    *logger.Logger
	outbox chan normWrite

	mu      sync.Mutex
	written map[string]struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewRedisNormCache creates the cache adapter and starts its writer.
func NewRedisNormCache(svc cache.Service, log *logger.Logger) *RedisNormCache {
	c := &RedisNormCache{
		svc:     svc,
		log:     log,
		outbox:  make(chan normWrite, normOutboxSize),
		written: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.drain()
	return c
}

func (c *RedisNormCache) GetMean(ctx context.Context, key string) (float64, bool) {
	return c.get(ctx, key+":mean")
}

func (c *RedisNormCache) GetStdDev(ctx context.Context, key string) (float64, bool) {
	return c.get(ctx, key+":stddev")
}

func (c *RedisNormCache) SetMean(key string, v float64) {
	c.enqueue(normWrite{key: key, field: "mean", value: v})
}

func (c *RedisNormCache) SetStdDev(key string, v float64) {
	c.enqueue(normWrite{key: key, field: "stddev", value: v})
}

// Close stops the background writer. Pending outbox entries are dropped.
func (c *RedisNormCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.done
}

func (c *RedisNormCache) get(ctx context.Context, fullKey string) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, normReadTimeout)
	defer cancel()

	var v float64
	err := c.svc.Get(ctx, "norm:"+fullKey, &v)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && c.log != nil {
			c.log.Debug("norm cache read failed", logger.String("key", fullKey), logger.Error(err))
		}
		return 0, false
	}
	return v, true
}

func (c *RedisNormCache) enqueue(w normWrite) {
	full := w.key + ":" + w.field
	c.mu.Lock()
	if _, seen := c.written[full]; seen {
		c.mu.Unlock()
		return
	}
	c.written[full] = struct{}{}
	c.mu.Unlock()

	select {
	case c.outbox <- w:
	default:
		// outbox full: drop, the cache is an optimization
		if c.log != nil {
			c.log.Debug("norm cache outbox full, dropping write", logger.String("key", full))
		}
	}
}

func (c *RedisNormCache) drain() {
	defer close(c.done)
	for {
		select {
		case <-c.stopCh:
			return
		case w := <-c.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), normWriteTimeout)
			err := c.svc.Set(ctx, "norm:"+w.key+":"+w.field, w.value, normTTL)
			cancel()
			if err != nil && c.log != nil {
				c.log.Debug("norm cache write failed", logger.String("key", w.key), logger.Error(err))
			}
		}
	}
}

var _ domsvc.NormalizationCache = (*RedisNormCache)(nil)
