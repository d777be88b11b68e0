// Package memory implements the profile repository as an in-process store
// with capacity and TTL eviction. Intended for development and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"request-profiler/internal/domain"
	"request-profiler/internal/usecase"
)

type entry struct {
	profile   *domain.Profile
	createdAt time.Time
}

type Store struct {
	mu sync.RWMutex
	// insertion order of tokens, oldest first
	order []string
	items map[string]*entry

	maxProfiles int
	ttl         time.Duration
	onEvict     func(evicted int)
}

func NewStore(maxProfiles int, ttl time.Duration) *Store {
	return &Store{
		order:       make([]string, 0, maxProfiles),
		items:       make(map[string]*entry, maxProfiles),
		maxProfiles: maxProfiles,
		ttl:         ttl,
	}
}

// SetEvictionHook installs fn, called with the number of profiles dropped
// whenever capacity or TTL eviction removes entries. fn runs under the store
// lock; keep it cheap.
func (s *Store) SetEvictionHook(fn func(evicted int)) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

func (s *Store) Write(ctx context.Context, p *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	if _, exists := s.items[p.Token]; !exists {
		if s.maxProfiles > 0 && len(s.items) >= s.maxProfiles {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.items, oldest)
			if s.onEvict != nil {
				s.onEvict(1)
			}
		}
		s.order = append(s.order, p.Token)
	}
	s.items[p.Token] = &entry{profile: p, createdAt: time.Now()}
	return nil
}

func (s *Store) Read(ctx context.Context, token string) (*domain.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.items[token]; ok {
		return e.profile, true, nil
	}
	return nil, false, nil
}

func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*entry, len(s.items))
	s.order = s.order[:0]
	return nil
}

// Find scans stored profiles newest-first and applies the criteria. IP and
// URL match by substring, method by exact (case-insensitive) value, status
// code and time bounds exactly.
func (s *Store) Find(ctx context.Context, c usecase.Criteria) ([]*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]*domain.Profile, 0, c.Limit)
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.items[s.order[i]]
		if e == nil {
			continue
		}
		if !matches(e.profile, c) {
			continue
		}
		results = append(results, e.profile)
		if c.Limit > 0 && len(results) >= c.Limit {
			break
		}
	}
	return results, nil
}

func matches(p *domain.Profile, c usecase.Criteria) bool {
	if c.IP != "" && !strings.Contains(p.IP, c.IP) {
		return false
	}
	if c.URL != "" && !strings.Contains(p.URL, c.URL) {
		return false
	}
	if c.Method != "" && !strings.EqualFold(p.Method, c.Method) {
		return false
	}
	if c.StatusCode != 0 && p.StatusCode != c.StatusCode {
		return false
	}
	if c.Start != nil && p.Time < *c.Start {
		return false
	}
	if c.End != nil && p.Time > *c.End {
		return false
	}
	if c.Filter != nil && !c.Filter(p) {
		return false
	}
	return true
}

func (s *Store) evictExpiredLocked() {
	if s.ttl <= 0 {
		return
	}
	now := time.Now()
	i, evicted := 0, 0
	for i < len(s.order) {
		token := s.order[i]
		e := s.items[token]
		if e == nil || now.Sub(e.createdAt) > s.ttl {
			delete(s.items, token)
			s.order = append(s.order[:i], s.order[i+1:]...)
			evicted++
			continue
		}
		i++
	}
	if evicted > 0 && s.onEvict != nil {
		s.onEvict(evicted)
	}
}
