package store

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore keeps codes in process memory. Codes do not survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	ttl  time.Duration
	nowF func() time.Time
}

// NewMemoryStore returns an empty store; ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		m:    make(map[string]entry),
		ttl:  ttl,
		nowF: time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	now := s.nowF()
	if e.expiresAt.After(now) {
		return e.code, true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a Put may have replaced the entry since the read
	if cur, ok := s.m[key]; ok && !cur.expiresAt.After(now) {
		delete(s.m, key)
	}
	return "", false, nil
}

func (s *MemoryStore) Put(ctx context.Context, key, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = entry{code: code, expiresAt: s.nowF().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
