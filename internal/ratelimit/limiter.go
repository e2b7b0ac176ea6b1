// Package ratelimit implements fixed-window request limiting for the booking
// endpoints, in process or shared through Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"interview-scheduler/internal/timemath"
)

type Limiter interface {
	// Allow counts one request for key and reports whether it fits in the current window.
	Allow(ctx context.Context, key string) (bool, error)
}

type Memory struct {
	limit  int
	window time.Duration
	clock  timemath.Clock

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	count   int
	resetAt time.Time
}

func NewMemory(limit int, window time.Duration, clock timemath.Clock) *Memory {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	if clock == nil {
		clock = timemath.SystemClock{}
	}
	return &Memory{
		limit:    limit,
		window:   window,
		clock:    clock,
		visitors: map[string]*visitor{},
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	v := m.visitors[key]
	if v == nil || !now.Before(v.resetAt) {
		m.visitors[key] = &visitor{count: 1, resetAt: now.Add(m.window)}
		m.sweep(now)
		return true, nil
	}
	if v.count >= m.limit {
		return false, nil
	}
	v.count++
	return true, nil
}

// sweep drops expired windows once the map grows large.
func (m *Memory) sweep(now time.Time) {
	if len(m.visitors) < 4096 {
		return
	}
	for k, v := range m.visitors {
		if !now.Before(v.resetAt) {
			delete(m.visitors, k)
		}
	}
}
