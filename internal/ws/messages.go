package ws

import (
	"encoding/json"

	"livebid/internal/apperr"
	"livebid/internal/clock"
)

const (
	EventSnapshot = "auctions/snapshot"
	EventTick     = "auctions/tick"
	EventList     = "auctions/list"
	EventBid      = "auctions/bid"
	EventWatch    = "auctions/watch"
	EventError    = "error"
	ackSuffix     = "-ack"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// outbound is the server side of Envelope with a typed body.
type outbound struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// BidRequest is the body for "auctions/bid".
type BidRequest struct {
	Amount int64 `json:"amount"`
}

func (r BidRequest) Validate() error {
	if r.Amount <= 0 {
		return apperr.Input("amount", "amount must be positive")
	}
	return nil
}

type WatchAck struct {
	Watching bool `json:"watching"`
}

type TickBody struct {
	AuctionID string `json:"auctionId"`
	clock.View
}
