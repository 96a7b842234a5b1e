package clock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TickFunc receives the countdown of a running timer on every tick.
type TickFunc func(id string, v View)

// ExpireFunc is invoked once, from the timer goroutine, when the auction
// runs out of time. The timer is already unregistered at that point.
type ExpireFunc func(id string)

// Scheduler runs one ticking goroutine per auction. Timers must be
// cancelled explicitly (Cancel/Stop); nothing is garbage collected.
type Scheduler struct {
	clock    Clock
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	timers map[string]*timer
	wg     sync.WaitGroup
}

type timer struct {
	cancel context.CancelFunc
}

func NewScheduler(c Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Scheduler{
		clock:    c,
		interval: interval,
		now:      time.Now,
		timers:   make(map[string]*timer),
	}
}

// Start (re)arms the timer of id. An existing timer for the same id is
// cancelled first. The deadline is evaluated immediately, so an auction
// that is already over expires without waiting a full tick.
func (s *Scheduler) Start(id string, end time.Time, onTick TickFunc, onExpire ExpireFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	t := &timer{cancel: cancel}

	s.mu.Lock()
	if old, ok := s.timers[id]; ok {
		old.cancel()
	}
	s.timers[id] = t
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, id, end, t, onTick, onExpire)
}

func (s *Scheduler) run(ctx context.Context, id string, end time.Time, t *timer, onTick TickFunc, onExpire ExpireFunc) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		v := s.clock.Snapshot(s.now(), end)
		if v.Expired {
			if !s.release(id, t) {
				return // cancelled concurrently
			}
			zap.L().Debug("clock.expired", zap.String("auction_id", id))
			if onExpire != nil {
				onExpire(id)
			}
			return
		}
		if onTick != nil {
			onTick(id, v)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// release unregisters t if it is still the live timer of id.
func (s *Scheduler) release(id string, t *timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.timers[id]; !ok || cur != t {
		return false
	}
	delete(s.timers, id)
	t.cancel()
	return true
}

func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	t, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()
	if ok {
		t.cancel()
	}
}

func (s *Scheduler) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer and waits for the goroutines to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, t := range s.timers {
		t.cancel()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
