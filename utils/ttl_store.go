package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLStore remembers short-lived keys (revoked tokens, OAuth states).
// It prefers redis and falls back to process memory, which is single-instance only.
type TTLStore struct {
	rc     *redis.Client
	prefix string

	mu  sync.Mutex
	mem map[string]time.Time
}

// NewTTLStore namespaces keys under prefix. rc may be nil.
func NewTTLStore(rc *redis.Client, prefix string) *TTLStore {
	return &TTLStore{rc: rc, prefix: prefix, mem: map[string]time.Time{}}
}

// Put stores key until ttl elapses. Non-positive ttl is ignored.
func (s *TTLStore) Put(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return s.rc.Set(ctx, s.prefix+key, "1", ttl).Err()
	}
	s.mu.Lock()
	s.mem[key] = time.Now().Add(ttl)
	s.mu.Unlock()
	return nil
}

// Has reports whether key is present and unexpired. Redis errors fail open.
func (s *TTLStore) Has(ctx context.Context, key string) bool {
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := s.rc.Exists(ctx, s.prefix+key).Result()
		if err != nil {
			Sugar.Warnf("ttl store exists failed prefix=%s err=%v", s.prefix, err)
			return false
		}
		return n > 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.mem[key]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(s.mem, key)
		return false
	}
	return true
}

// Take removes key and reports whether it was present and unexpired. Single use.
func (s *TTLStore) Take(ctx context.Context, key string) bool {
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		v, err := s.rc.GetDel(ctx, s.prefix+key).Result()
		if err != nil {
			return false
		}
		return v != ""
	}
	s.mu.Lock()
	exp, ok := s.mem[key]
	if ok {
		delete(s.mem, key)
	}
	s.mu.Unlock()
	return ok && time.Now().Before(exp)
}
