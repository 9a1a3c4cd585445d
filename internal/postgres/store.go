// Package postgres stores the terminal's collections in PostgreSQL, for
// terminals that keep their books on a back-office database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB  *pgxpool.Pool
	now func() time.Time
}

// Open connects to dsn and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool), nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool, now: time.Now}
}

func (s *Store) Load(ctx context.Context, c storage.Collection) ([]byte, error) {
	var body []byte
	err := s.DB.QueryRow(ctx, `SELECT body FROM collections WHERE name=$1`, string(c)).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c, err)
	}
	return body, nil
}

func (s *Store) Commit(ctx context.Context, writes map[storage.Collection][]byte) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range storage.Sorted(writes) {
		if _, err := tx.Exec(ctx, `
INSERT INTO collections (name, body, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
			string(c), writes[c]); err != nil {
			return fmt.Errorf("write %s: %w", c, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) AcquireLease(ctx context.Context, holder string, ttl time.Duration) error {
	now := s.now()
	tag, err := s.DB.Exec(ctx, `
INSERT INTO session_lease (name, holder, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
WHERE session_lease.holder = EXCLUDED.holder OR session_lease.expires_at < $4`,
		storage.LeaseName, holder, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrLeaseHeld
	}
	return nil
}

func (s *Store) ReleaseLease(ctx context.Context, holder string) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM session_lease WHERE name=$1 AND holder=$2`, storage.LeaseName, holder); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.DB.Close()
	return nil
}
