package service

import (
	"context"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/common"
)

type cooldownWindow struct {
	count     int64
	expiresAt time.Time
}

// cooldownStore is a limiter.Store that reads time from a Clock. Windows are
// fixed: they start on the first hit and are not extended by later hits.
// Stale windows are dropped by Sweep rather than by a background goroutine.
type cooldownStore struct {
	mu      sync.Mutex
	windows map[string]*cooldownWindow
	clock   Clock
}

func newCooldownStore(clock Clock) *cooldownStore {
	return &cooldownStore{
		windows: make(map[string]*cooldownWindow),
		clock:   clock,
	}
}

func (s *cooldownStore) Get(ctx context.Context, key string, rate limiter.Rate) (limiter.Context, error) {
	return s.Increment(ctx, key, 1, rate)
}

func (s *cooldownStore) Increment(_ context.Context, key string, count int64, rate limiter.Rate) (limiter.Context, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	window, ok := s.windows[key]
	if !ok || !now.Before(window.expiresAt) {
		window = &cooldownWindow{expiresAt: now.Add(rate.Period)}
		s.windows[key] = window
	}
	window.count += count

	return common.GetContextFromState(now, rate, window.expiresAt, window.count), nil
}

func (s *cooldownStore) Peek(_ context.Context, key string, rate limiter.Rate) (limiter.Context, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	window, ok := s.windows[key]
	if !ok || !now.Before(window.expiresAt) {
		return common.GetContextFromState(now, rate, now.Add(rate.Period), 0), nil
	}
	return common.GetContextFromState(now, rate, window.expiresAt, window.count), nil
}

func (s *cooldownStore) Reset(_ context.Context, key string, rate limiter.Rate) (limiter.Context, error) {
	now := s.clock.Now()

	s.mu.Lock()
	delete(s.windows, key)
	s.mu.Unlock()

	return common.GetContextFromState(now, rate, now.Add(rate.Period), 0), nil
}

// Sweep drops every window that has ended and returns how many were dropped.
func (s *cooldownStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, window := range s.windows {
		if !now.Before(window.expiresAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

func (s *cooldownStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
