package auctionstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"livebid/internal/domain"
)

// hash field names of auc:<id>, shared with livebid.lua
const (
	fID           = "id"
	fTitle        = "title"
	fDesc         = "desc"
	fImage        = "img"
	fStartingBid  = "sb"
	fCurrentBid   = "cb"
	fIncrement    = "inc"
	fReserve      = "rp"
	fRequireRes   = "rr"
	fMaxPart      = "mp"
	fParticipants = "np"
	fStatus       = "st"
	fEndTime      = "et"
	fCreatedBy    = "cby"
	fCreatedByID  = "cbid"
	fCreatedAt    = "cat"
	fWinnerID     = "wid"
	fWinnerName   = "wname"
)

type fieldReader struct {
	h   map[string]string
	err error
}

func (r *fieldReader) int64(name string) int64 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(r.h[name], 10, 64)
	if err != nil {
		r.err = fmt.Errorf("%w: field %s: %v", domain.ErrInvalidAuction, name, err)
	}
	return v
}

func (r *fieldReader) millis(name string) time.Time {
	return time.UnixMilli(r.int64(name)).UTC()
}

// decode builds a typed auction from its hash and bid list and checks the
// record invariants.
func decode(h map[string]string, rawBids []string) (domain.Auction, error) {
	r := &fieldReader{h: h}
	a := domain.Auction{
		ID:              h[fID],
		Title:           h[fTitle],
		Description:     h[fDesc],
		Image:           h[fImage],
		StartingBid:     r.int64(fStartingBid),
		CurrentBid:      r.int64(fCurrentBid),
		MinIncrement:    r.int64(fIncrement),
		ReservePrice:    r.int64(fReserve),
		RequireReserve:  h[fRequireRes] == "1",
		MaxParticipants: int(r.int64(fMaxPart)),
		Participants:    int(r.int64(fParticipants)),
		Status:          domain.Status(h[fStatus]),
		EndTime:         r.millis(fEndTime),
		CreatedBy:       h[fCreatedBy],
		CreatedByID:     h[fCreatedByID],
		CreatedAt:       r.millis(fCreatedAt),
		Bids:            make([]domain.Bid, 0, len(rawBids)),
	}
	if r.err != nil {
		return domain.Auction{}, r.err
	}
	for i, raw := range rawBids {
		var b domain.Bid
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return domain.Auction{}, fmt.Errorf("%w: bid %d: %v", domain.ErrInvalidAuction, i, err)
		}
		a.Bids = append(a.Bids, b)
	}
	if id := h[fWinnerID]; id != "" {
		a.Winner = &domain.Winner{UserID: id, Username: h[fWinnerName]}
	}
	if err := a.Validate(); err != nil {
		return domain.Auction{}, err
	}
	return a, nil
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
