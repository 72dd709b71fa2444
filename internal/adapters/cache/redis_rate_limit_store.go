package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "license:ratelimit:"

// RedisRateLimitStore counts hits in fixed windows keyed by window start.
type RedisRateLimitStore struct {
	client *redis.Client
	nowFn  func() time.Time
}

func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, nowFn: time.Now}
}

func (s *RedisRateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := bucketKey(key, s.nowFn(), window)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		p.Expire(ctx, redisKey, window+time.Minute)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func bucketKey(key string, now time.Time, window time.Duration) string {
	seconds := int64(window / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	bucket := now.Unix() / seconds
	return rateLimitPrefix + key + ":" + strconv.FormatInt(bucket, 10)
}
