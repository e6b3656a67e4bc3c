// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. Suitable for development and
// testing; data is lost on restart.
type MemoryStore struct {
	decisions []Decision
	mu        sync.RWMutex
	maxLen    int
}

// NewMemoryStore creates an in-memory decision store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		decisions: make([]Decision, 0, 64),
		maxLen:    maxLen,
	}
}

// Save persists one decision, evicting the oldest tenth at capacity.
func (s *MemoryStore) Save(_ context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.decisions) >= s.maxLen {
		remove := s.maxLen / 10
		if remove == 0 {
			remove = 1
		}
		s.decisions = s.decisions[remove:]
	}

	s.decisions = append(s.decisions, *d)
	return nil
}

// Query returns matching decisions, newest first.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Decision, 0)
	for i := range s.decisions {
		if filter.matches(&s.decisions[i]) {
			matched = append(matched, s.decisions[i])
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count returns the number of matching decisions.
func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.decisions {
		if filter.matches(&s.decisions[i]) {
			n++
		}
	}
	return n, nil
}

// DeleteBefore removes decisions older than the cutoff.
func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.decisions[:0]
	var removed int64
	for i := range s.decisions {
		if s.decisions[i].Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, s.decisions[i])
	}
	s.decisions = kept
	return removed, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
