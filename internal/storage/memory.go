package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store. It backs tests and the "memory" driver.
type Memory struct {
	mu    sync.Mutex
	docs  map[Collection][]byte
	lease struct {
		holder  string
		expires time.Time
	}

	failCommit error
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[Collection][]byte), now: time.Now}
}

// FailCommits makes every following Commit return err without writing
// anything; nil restores normal behaviour.
func (m *Memory) FailCommits(err error) {
	m.mu.Lock()
	m.failCommit = err
	m.mu.Unlock()
}

func (m *Memory) Load(_ context.Context, c Collection) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[c]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Commit(_ context.Context, writes map[Collection][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommit != nil {
		return m.failCommit
	}
	for c, b := range writes {
		m.docs[c] = append([]byte(nil), b...)
	}
	return nil
}

func (m *Memory) AcquireLease(_ context.Context, holder string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if m.lease.holder != "" && m.lease.holder != holder && now.Before(m.lease.expires) {
		return ErrLeaseHeld
	}
	m.lease.holder = holder
	m.lease.expires = now.Add(ttl)
	return nil
}

func (m *Memory) ReleaseLease(_ context.Context, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lease.holder == holder {
		m.lease.holder = ""
	}
	return nil
}

func (m *Memory) Close() error { return nil }
