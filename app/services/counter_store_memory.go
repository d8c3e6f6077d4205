package services

import (
	"context"
	"sync"
)

// MemoryCounterStore is a process-local CounterStore for single-instance deployments and tests
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
	sets     map[string]map[string]struct{}
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]int64),
		sets:     make(map[string]map[string]struct{}),
	}
}

func (s *MemoryCounterStore) IncrementIfExists(ctx context.Context, key string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.counters[key]
	if !ok {
		return 0, false, nil
	}
	v++
	s.counters[key] = v
	return v, true, nil
}

func (s *MemoryCounterStore) SeedAndIncrement(ctx context.Context, key string, seed int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.counters[key]
	if !ok {
		v = seed
	}
	v++
	s.counters[key] = v
	return v, nil
}

func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.counters[key]
	return v, ok, nil
}

// Delete drops a counter, as an eviction would
func (s *MemoryCounterStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
}

func (s *MemoryCounterStore) AddMembers(ctx context.Context, set string, members ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.sets[set]
	if !ok {
		m = make(map[string]struct{})
		s.sets[set] = m
	}
	for _, member := range members {
		m[member] = struct{}{}
	}
	return nil
}

func (s *MemoryCounterStore) Members(ctx context.Context, set string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.sets[set]))
	for member := range s.sets[set] {
		out = append(out, member)
	}
	return out, nil
}

func (s *MemoryCounterStore) RemoveMembers(ctx context.Context, set string, members ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.sets[set]
	var removed int64
	for _, member := range members {
		if _, ok := m[member]; ok {
			delete(m, member)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryCounterStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
