package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis counts requests per key in fixed one-minute windows. The counter key
// embeds the window start, so each window gets a fresh counter that expires on
// its own.
type Redis struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedis(client redis.Cmdable, prefix string, perMinute int) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		limit:  int64(perMinute),
		window: time.Minute,
		now:    time.Now,
	}
}

func (l *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	start := now.Truncate(l.window)
	counterKey := l.prefix + ":" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}

	if incr.Val() > l.limit {
		return Decision{Allowed: false, RetryAfter: start.Add(l.window).Sub(now)}, nil
	}
	return Decision{Allowed: true}, nil
}
