package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"offline-payment-engine/internal/core/ports"
)

// RateLimitStore implements ports.RateLimitStore with fixed-window counters
// held in memory. Used when redis is disabled.
type RateLimitStore struct {
	mu       sync.Mutex
	counters map[string]int64
	windows  map[string]int64
	now      func() time.Time
}

// NewRateLimitStore creates a RateLimitStore.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		counters: make(map[string]int64),
		windows:  make(map[string]int64),
		now:      time.Now,
	}
}

func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	secs := int64(window.Seconds())
	if secs <= 0 {
		return nil, fmt.Errorf("rate limit window must be at least 1s, got %s", window)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	windowID := s.now().Unix() / secs
	if s.windows[key] != windowID {
		s.windows[key] = windowID
		s.counters[key] = 0
	}
	s.counters[key]++
	count := s.counters[key]

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (windowID + 1) * secs,
	}, nil
}
