package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/lamiedu/taarifa/core"
	"github.com/lamiedu/taarifa/core/notification"
)

// UnreadCounter caches per-recipient unread counts in redis. Values expire
// after a TTL and are invalidated on every mutation, so a stale entry can only
// outlive the store briefly; the store stays the source of truth.
type UnreadCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ notification.UnreadCounter = (*UnreadCounter)(nil)

func NewUnreadCounter(conf *core.Config) *UnreadCounter {
	rdb := redis.NewClient(&redis.Options{
		Addr:         conf.Redis.Address,
		Password:     conf.Redis.Password,
		DB:           conf.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &UnreadCounter{rdb: rdb, ttl: conf.Redis.TTL}
}

// NewUnreadCounterWithClient is used in tests to run against miniredis.
func NewUnreadCounterWithClient(rdb *redis.Client, ttl time.Duration) *UnreadCounter {
	return &UnreadCounter{rdb: rdb, ttl: ttl}
}

func key(rcpt notification.Recipient) string {
	return fmt.Sprintf("unread:%s:%d", rcpt.Role, rcpt.ID)
}

func (c *UnreadCounter) Get(ctx context.Context, rcpt notification.Recipient) (int, bool, error) {
	val, err := c.rdb.Get(ctx, key(rcpt)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "reading unread count")
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		// garbage entry; drop it and treat as a miss
		_ = c.rdb.Del(ctx, key(rcpt)).Err()
		return 0, false, nil
	}
	return count, true, nil
}

func (c *UnreadCounter) Set(ctx context.Context, rcpt notification.Recipient, count int) error {
	if err := c.rdb.Set(ctx, key(rcpt), count, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "caching unread count")
	}
	return nil
}

func (c *UnreadCounter) Invalidate(ctx context.Context, rcpt notification.Recipient) error {
	if err := c.rdb.Del(ctx, key(rcpt)).Err(); err != nil {
		return errors.Wrap(err, "invalidating unread count")
	}
	return nil
}

func (c *UnreadCounter) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping")
	}
	return nil
}

func (c *UnreadCounter) Close() error {
	return c.rdb.Close()
}
