package clock

import (
	"fmt"
	"time"

	"livebid/internal/domain"
)

const (
	FinishedLabel  = "FINISHED"
	DefaultWarning = 5 * time.Minute
	DefaultTick    = time.Second
)

// View is the countdown state of one auction at one instant.
type View struct {
	Remaining  time.Duration `json:"remaining"`
	Display    string        `json:"display"`
	EndingSoon bool          `json:"endingSoon"`
	Expired    bool          `json:"expired"`
}

// Clock derives countdown views. The zero value uses DefaultWarning.
type Clock struct {
	Warning time.Duration
	Compact bool
}

func Remaining(now, end time.Time) time.Duration {
	if d := end.Sub(now); d > 0 {
		return d
	}
	return 0
}

func IsExpired(now, end time.Time) bool {
	return !end.After(now)
}

// Format renders d as HH:MM:SS, or FinishedLabel once nothing is left.
func Format(d time.Duration) string {
	if d <= 0 {
		return FinishedLabel
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// FormatCompact drops the leading units: HH:MM:SS, MM:SS or Ns.
func FormatCompact(d time.Duration) string {
	if d <= 0 {
		return FinishedLabel
	}
	s := int64(d / time.Second)
	switch {
	case s >= 3600:
		return Format(d)
	case s >= 60:
		return fmt.Sprintf("%02d:%02d", s/60, s%60)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func (c Clock) warning() time.Duration {
	if c.Warning > 0 {
		return c.Warning
	}
	return DefaultWarning
}

func (c Clock) EndingSoon(remaining time.Duration) bool {
	return remaining > 0 && remaining < c.warning()
}

func (c Clock) Snapshot(now, end time.Time) View {
	r := Remaining(now, end)
	display := Format(r)
	if c.Compact {
		display = FormatCompact(r)
	}
	return View{
		Remaining:  r,
		Display:    display,
		EndingSoon: c.EndingSoon(r),
		Expired:    IsExpired(now, end),
	}
}

// Finalize decides the terminal state of a: the last bidder wins, or nobody
// when there are no bids. It returns false and a unchanged when a is
// already finished, so applying it twice is the same as applying it once.
func Finalize(a domain.Auction) (domain.Auction, bool) {
	if a.Status != domain.StatusActive {
		return a, false
	}
	a.Status = domain.StatusFinished
	a.Winner = nil
	if last := a.LastBid(); last != nil {
		a.Winner = &domain.Winner{UserID: last.UserID, Username: last.Username}
	}
	return a, true
}
