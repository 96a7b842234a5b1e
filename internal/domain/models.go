package domain

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusFinished
}

// Bid is an accepted offer. Bids are immutable once appended and their
// position in Auction.Bids is their precedence.
type Bid struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

type Winner struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Auction struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Image           string    `json:"image"`
	StartingBid     int64     `json:"startingBid"`
	CurrentBid      int64     `json:"currentBid"`
	MinIncrement    int64     `json:"minIncrement,omitempty"`
	ReservePrice    int64     `json:"reservePrice,omitempty"`
	RequireReserve  bool      `json:"requireReserve,omitempty"`
	MaxParticipants int       `json:"maxParticipants"`
	Participants    int       `json:"participants"`
	Bids            []Bid     `json:"bids"`
	Status          Status    `json:"status"`
	EndTime         time.Time `json:"endTime"`
	CreatedBy       string    `json:"createdBy"`
	CreatedByID     string    `json:"createdById"`
	CreatedAt       time.Time `json:"createdAt"`
	Winner          *Winner   `json:"winner"`
}

var ErrInvalidAuction = errors.New("invalid auction record")

// Validate checks the record invariants. It is applied to every auction
// read back from the store so a malformed document never reaches the rules.
func (a *Auction) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidAuction)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidAuction, a.Status)
	}
	if a.StartingBid < 0 || a.CurrentBid < a.StartingBid {
		return fmt.Errorf("%w: current bid %d below starting bid %d", ErrInvalidAuction, a.CurrentBid, a.StartingBid)
	}
	if a.MaxParticipants < 1 {
		return fmt.Errorf("%w: max participants %d", ErrInvalidAuction, a.MaxParticipants)
	}
	if a.EndTime.IsZero() {
		return fmt.Errorf("%w: missing end time", ErrInvalidAuction)
	}

	want := a.StartingBid
	seen := make(map[string]struct{}, len(a.Bids))
	for i, b := range a.Bids {
		if i > 0 && b.Amount <= a.Bids[i-1].Amount {
			return fmt.Errorf("%w: bid %d does not increase", ErrInvalidAuction, i)
		}
		seen[b.UserID] = struct{}{}
		want = b.Amount
	}
	if a.CurrentBid != want {
		return fmt.Errorf("%w: current bid %d, last bid %d", ErrInvalidAuction, a.CurrentBid, want)
	}
	if a.Participants != len(seen) {
		return fmt.Errorf("%w: participants %d, distinct bidders %d", ErrInvalidAuction, a.Participants, len(seen))
	}
	if a.Status == StatusActive && a.Winner != nil {
		return fmt.Errorf("%w: active auction has a winner", ErrInvalidAuction)
	}
	return nil
}

func (a *Auction) LastBid() *Bid {
	if len(a.Bids) == 0 {
		return nil
	}
	b := a.Bids[len(a.Bids)-1]
	return &b
}

type User struct {
	ID           string     `json:"id"`
	Phone        string     `json:"phone"`
	Username     string     `json:"username"`
	RegisteredAt time.Time  `json:"registrationDate"`
	LastLogin    time.Time  `json:"lastLogin"`
	TotalBids    int        `json:"totalBids"`
	AuctionsWon  int        `json:"auctionsWon"`
	IsBanned     bool       `json:"isBanned"`
	BanReason    string     `json:"banReason,omitempty"`
	BannedAt     *time.Time `json:"banDate,omitempty"`
	IsAdmin      bool       `json:"isAdmin"`
}

func (u *User) Participant() Participant {
	return Participant{UserID: u.ID, Username: u.Username}
}

// UserBid is one bid of a user joined with the state of its auction.
type UserBid struct {
	Bid
	AuctionID    string    `json:"auctionId"`
	AuctionTitle string    `json:"auctionTitle"`
	CurrentBid   int64     `json:"currentBid"`
	Status       Status    `json:"status"`
	EndTime      time.Time `json:"endTime"`
}

// FinishedAuction is the archived summary of an auction used by the
// winners board.
type FinishedAuction struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CurrentBid int64     `json:"currentBid"`
	EndTime    time.Time `json:"endTime"`
	Winner     *Winner   `json:"winner"`
}

type Stats struct {
	TotalUsers       int `json:"totalUsers"`
	BannedUsers      int `json:"bannedUsers"`
	TotalAuctions    int `json:"totalAuctions"`
	ActiveAuctions   int `json:"activeAuctions"`
	FinishedAuctions int `json:"finishedAuctions"`
}
