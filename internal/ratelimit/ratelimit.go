// Package ratelimit throttles per-user actions (bids, watch toggles, login
// attempts). The default backend is process-local: a restart or a second
// instance starts from a clean slate.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type Action string

const (
	ActionBid   Action = "bid"
	ActionLogin Action = "login"
	ActionWatch Action = "watch"
)

type BidMode string

const (
	// ModeWindow allows MaxBidsPerMinute bids in any sliding BidWindow.
	ModeWindow BidMode = "window"
	// ModeCooldown requires BidCooldown between two bids of the same user.
	ModeCooldown BidMode = "cooldown"
)

type Config struct {
	BidMode          BidMode
	BidCooldown      time.Duration
	MaxBidsPerMinute int
	BidWindow        time.Duration

	MaxLoginAttempts int
	LoginWindow      time.Duration

	MaxWatches  int
	WatchWindow time.Duration

	// Retention bounds how long ClearOldEntries keeps timestamps. It is
	// never shorter than the longest rule window.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		BidMode:          ModeWindow,
		BidCooldown:      30 * time.Second,
		MaxBidsPerMinute: 10,
		BidWindow:        time.Minute,
		MaxLoginAttempts: 5,
		LoginWindow:      15 * time.Minute,
		MaxWatches:       50,
		WatchWindow:      time.Hour,
		Retention:        2 * time.Hour,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BidMode == "" {
		c.BidMode = d.BidMode
	}
	if c.BidCooldown <= 0 {
		c.BidCooldown = d.BidCooldown
	}
	if c.MaxBidsPerMinute <= 0 {
		c.MaxBidsPerMinute = d.MaxBidsPerMinute
	}
	if c.BidWindow <= 0 {
		c.BidWindow = d.BidWindow
	}
	if c.MaxLoginAttempts <= 0 {
		c.MaxLoginAttempts = d.MaxLoginAttempts
	}
	if c.LoginWindow <= 0 {
		c.LoginWindow = d.LoginWindow
	}
	if c.MaxWatches <= 0 {
		c.MaxWatches = d.MaxWatches
	}
	if c.WatchWindow <= 0 {
		c.WatchWindow = d.WatchWindow
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	for _, a := range []Action{ActionBid, ActionLogin, ActionWatch} {
		if w := c.rule(a).window; w > c.Retention {
			c.Retention = w
		}
	}
	return c
}

type rule struct {
	window time.Duration
	max    int
}

// rule maps an action to a sliding window. A cooldown is a window of the
// cooldown length holding a single entry; a login lockout lasts until the
// first attempt of the window ages out.
func (c Config) rule(a Action) rule {
	switch a {
	case ActionBid:
		if c.BidMode == ModeCooldown {
			return rule{window: c.BidCooldown, max: 1}
		}
		return rule{window: c.BidWindow, max: c.MaxBidsPerMinute}
	case ActionLogin:
		return rule{window: c.LoginWindow, max: c.MaxLoginAttempts}
	case ActionWatch:
		return rule{window: c.WatchWindow, max: c.MaxWatches}
	}
	return rule{window: time.Minute, max: 1}
}

// DeniedError is returned when an action is throttled.
type DeniedError struct {
	Action     Action
	RetryAfter time.Duration
}

var ErrLimited = &DeniedError{}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("too many %s attempts, retry in %ds", e.Action, e.RetryAfterSeconds())
}

func (e *DeniedError) Is(target error) bool {
	_, ok := target.(*DeniedError)
	return ok
}

// RetryAfterSeconds rounds the wait up to whole seconds.
func (e *DeniedError) RetryAfterSeconds() int {
	s := int((e.RetryAfter + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// RetryAfterMinutes is used for login lockouts.
func (e *DeniedError) RetryAfterMinutes() int {
	return (e.RetryAfterSeconds() + 59) / 60
}

// Limiter is implemented by Memory and Redis. Allowed calls are recorded;
// denied calls are not.
type Limiter interface {
	CanBid(ctx context.Context, userID string, now time.Time) error
	CanLogin(ctx context.Context, phone string, now time.Time) error
	CanWatch(ctx context.Context, userID string, now time.Time) error
	ResetLoginAttempts(ctx context.Context, phone string) error
	ClearOldEntries(ctx context.Context, now time.Time) error
}
