package bidding

import (
	"fmt"
	"time"

	"livebid/internal/domain"
	"livebid/internal/participants"
)

type Reason string

const (
	ReasonNotActive    Reason = "not_active"
	ReasonFull         Reason = "full"
	ReasonTooLow       Reason = "too_low"
	ReasonBadIncrement Reason = "bad_increment"
	ReasonReserveUnmet Reason = "reserve_unmet"
)

// IncrementRule selects how the step constraint is applied.
type IncrementRule string

const (
	// RelativeStep requires (amount - currentBid) to be a multiple of the increment.
	RelativeStep IncrementRule = "relative"
	// AbsoluteStep requires the amount itself to be a multiple of the increment.
	AbsoluteStep IncrementRule = "absolute"
)

const DefaultMinIncrement int64 = 10

// RejectionError is returned for every refused bid. Match it with the
// Err* sentinels through errors.Is.
type RejectionError struct {
	Reason Reason
	MinBid int64
}

var (
	ErrNotActive    = &RejectionError{Reason: ReasonNotActive}
	ErrFull         = &RejectionError{Reason: ReasonFull}
	ErrTooLow       = &RejectionError{Reason: ReasonTooLow}
	ErrBadIncrement = &RejectionError{Reason: ReasonBadIncrement}
	ErrReserveUnmet = &RejectionError{Reason: ReasonReserveUnmet}
)

func (e *RejectionError) Error() string {
	switch e.Reason {
	case ReasonNotActive:
		return "auction is not active"
	case ReasonFull:
		return "auction reached the maximum number of participants"
	case ReasonTooLow:
		return fmt.Sprintf("minimum bid is %d", e.MinBid)
	case ReasonBadIncrement:
		return "bid does not follow the increment step"
	case ReasonReserveUnmet:
		return "bid is below the reserve price"
	}
	return string(e.Reason)
}

func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Reason == e.Reason
}

// Accepted is what the caller writes to the store: the bid to append plus
// the scalar fields that change with it.
type Accepted struct {
	Bid          domain.Bid
	CurrentBid   int64
	Participants int
	FirstBid     bool
}

// Validator decides whether a bid may be accepted. It holds no state and
// performs no I/O.
type Validator struct {
	MinIncrement int64
	Rule         IncrementRule
}

func New(minIncrement int64, rule IncrementRule) Validator {
	if minIncrement <= 0 {
		minIncrement = DefaultMinIncrement
	}
	if rule == "" {
		rule = RelativeStep
	}
	return Validator{MinIncrement: minIncrement, Rule: rule}
}

// Increment returns the step in force for a: its own increment when set,
// the platform default otherwise.
func (v Validator) Increment(a *domain.Auction) int64 {
	if a.MinIncrement > 0 {
		return a.MinIncrement
	}
	if v.MinIncrement > 0 {
		return v.MinIncrement
	}
	return DefaultMinIncrement
}

func (v Validator) MinNextBid(a *domain.Auction) int64 {
	return a.CurrentBid + v.Increment(a)
}

func (v Validator) Validate(a domain.Auction, bidder domain.Participant, amount int64, now time.Time) (*Accepted, error) {
	if a.Status != domain.StatusActive {
		return nil, ErrNotActive
	}

	first := !participants.New(0).Contains(a.Bids, bidder.UserID)
	if first && a.Participants >= a.MaxParticipants {
		return nil, ErrFull
	}

	// The step is checked before the minimum so an off-step amount is
	// always reported as such, even when it is also too low.
	m := v.Increment(&a)
	minBid := a.CurrentBid + m
	step := amount - a.CurrentBid
	if v.Rule == AbsoluteStep {
		step = amount
	}
	if step%m != 0 {
		return nil, &RejectionError{Reason: ReasonBadIncrement, MinBid: minBid}
	}
	if amount < minBid {
		return nil, &RejectionError{Reason: ReasonTooLow, MinBid: minBid}
	}

	if a.RequireReserve && a.ReservePrice > 0 && amount < a.ReservePrice {
		return nil, &RejectionError{Reason: ReasonReserveUnmet, MinBid: a.ReservePrice}
	}

	res := &Accepted{
		Bid: domain.Bid{
			UserID:    bidder.UserID,
			Username:  bidder.Username,
			Amount:    amount,
			Timestamp: now.UTC(),
		},
		CurrentBid:   amount,
		Participants: a.Participants,
		FirstBid:     first,
	}
	if first {
		res.Participants++
	}
	return res, nil
}
