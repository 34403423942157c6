package smpp

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-process fake of Store for tests, good enough to exercise
// the SequenceAllocator and UnackedLedger protocols without a real Redis.
type memStore struct {
	mu       sync.Mutex
	counters map[string]int64
	expiry   map[string]time.Time
	lists    map[string][]string
}

func newMemStore() *memStore {
	return &memStore{
		counters: make(map[string]int64),
		expiry:   make(map[string]time.Time),
		lists:    make(map[string][]string),
	}
}

func (s *memStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key]++
	return s.counters[key], nil
}

func (s *memStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key], nil
}

func (s *memStore) SetNX(ctx context.Context, key string, val int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counters[key]; ok {
		return false, nil
	}
	s.counters[key] = val
	return true, nil
}

func (s *memStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[key]
	if !ok {
		return -1, nil
	}
	return time.Until(exp), nil
}

func (s *memStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry[key] = time.Now().Add(ttl)
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	delete(s.expiry, key)
	return nil
}

func (s *memStore) LPush(ctx context.Context, key string, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append([]string{val}, s.lists[key]...)
	return nil
}

func (s *memStore) LPop(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	if len(l) == 0 {
		return "", false, nil
	}
	v := l[0]
	s.lists[key] = l[1:]
	return v, true, nil
}

func (s *memStore) LLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[key])), nil
}
