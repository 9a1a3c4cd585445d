package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Claimed reports whether (service, id) already holds a live claim.
func Claimed(ctx context.Context, rdb *redis.Client, service, id string) (bool, error) {
	n, err := rdb.Exists(ctx, fmt.Sprintf(KeyDedup, service, id)).Result()
	return n > 0, err
}

// Claim marks (service, id) as processed. It reports false when another
// worker already claimed it within ttl.
func Claim(ctx context.Context, rdb *redis.Client, service, id string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, id), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Unclaim drops a claim so the event can be processed again, used when
// processing fails after Claim succeeded.
func Unclaim(ctx context.Context, rdb *redis.Client, service, id string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, id)).Err()
}
