package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/storage"
	"github.com/redis/go-redis/v9"
)

// acquireLease sets the lease when free or already ours and extends it.
var acquireLease = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false or cur == ARGV[1] then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
  return 1
end
return 0
`)

var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store keeps each collection under its own key. Commit writes them in one
// MULTI/EXEC block.
type Store struct {
	rdb      *redis.Client
	terminal string
}

func NewStore(rdb *redis.Client, terminal string) *Store {
	if terminal == "" {
		terminal = "default"
	}
	return &Store{rdb: rdb, terminal: terminal}
}

func (s *Store) key(c storage.Collection) string {
	return fmt.Sprintf(KeyCollection, s.terminal, c)
}

func (s *Store) Load(ctx context.Context, c storage.Collection) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.key(c)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c, err)
	}
	return b, nil
}

func (s *Store) Commit(ctx context.Context, writes map[storage.Collection][]byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, c := range storage.Sorted(writes) {
			p.Set(ctx, s.key(c), writes[c], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) AcquireLease(ctx context.Context, holder string, ttl time.Duration) error {
	ok, err := acquireLease.Run(ctx, s.rdb, []string{fmt.Sprintf(KeyLease, s.terminal)}, holder, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if ok == 0 {
		return storage.ErrLeaseHeld
	}
	return nil
}

func (s *Store) ReleaseLease(ctx context.Context, holder string) error {
	if err := releaseLease.Run(ctx, s.rdb, []string{fmt.Sprintf(KeyLease, s.terminal)}, holder).Err(); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error { return s.rdb.Close() }
