package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory keeps an insertion-ordered slice of timestamps per action and key.
type Memory struct {
	cfg Config

	mu      sync.Mutex
	entries map[Action]map[string][]time.Time
}

var _ Limiter = (*Memory)(nil)

func NewMemory(cfg Config) *Memory {
	return &Memory{
		cfg: cfg.withDefaults(),
		entries: map[Action]map[string][]time.Time{
			ActionBid:   {},
			ActionLogin: {},
			ActionWatch: {},
		},
	}
}

func (m *Memory) CanBid(_ context.Context, userID string, now time.Time) error {
	return m.hit(ActionBid, userID, now)
}

func (m *Memory) CanLogin(_ context.Context, phone string, now time.Time) error {
	return m.hit(ActionLogin, phone, now)
}

func (m *Memory) CanWatch(_ context.Context, userID string, now time.Time) error {
	return m.hit(ActionWatch, userID, now)
}

func (m *Memory) ResetLoginAttempts(_ context.Context, phone string) error {
	m.mu.Lock()
	delete(m.entries[ActionLogin], phone)
	m.mu.Unlock()
	return nil
}

// ClearOldEntries drops timestamps older than the retention window and
// forgets keys left empty.
func (m *Memory) ClearOldEntries(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bucket := range m.entries {
		for key, ts := range bucket {
			ts = keepRecent(ts, now, m.cfg.Retention)
			if len(ts) == 0 {
				delete(bucket, key)
				continue
			}
			bucket[key] = ts
		}
	}
	return nil
}

// Len reports how many keys are tracked for a.
func (m *Memory) Len(a Action) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[a])
}

func (m *Memory) hit(a Action, key string, now time.Time) error {
	r := m.cfg.rule(a)

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := m.entries[a]
	ts := keepRecent(bucket[key], now, r.window)
	if len(ts) >= r.max {
		bucket[key] = ts
		return &DeniedError{Action: a, RetryAfter: ts[0].Add(r.window).Sub(now)}
	}
	bucket[key] = append(ts, now)
	return nil
}

// keepRecent returns the suffix of ts younger than window. ts is ordered
// by insertion, which is chronological.
func keepRecent(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(ts) && now.Sub(ts[i]) >= window {
		i++
	}
	if i == 0 {
		return ts
	}
	return append([]time.Time(nil), ts[i:]...)
}
