package participants

import "livebid/internal/domain"

// Tracker derives display data from a bid history. It never mutates the
// bids it is given.
type Tracker struct {
	// Cap truncates Unique; 0 means unbounded.
	Cap int
}

func New(limit int) Tracker { return Tracker{Cap: limit} }

// Unique returns one entry per distinct bidder in order of first appearance.
func (t Tracker) Unique(bids []domain.Bid) []domain.Participant {
	out := make([]domain.Participant, 0, len(bids))
	seen := make(map[string]struct{}, len(bids))
	for _, b := range bids {
		if _, ok := seen[b.UserID]; ok {
			continue
		}
		seen[b.UserID] = struct{}{}
		out = append(out, domain.Participant{UserID: b.UserID, Username: b.Username})
		if t.Cap > 0 && len(out) == t.Cap {
			break
		}
	}
	return out
}

// LastBidder returns a copy of the chronologically last bid, or nil.
func (t Tracker) LastBidder(bids []domain.Bid) *domain.Bid {
	if len(bids) == 0 {
		return nil
	}
	last := bids[len(bids)-1]
	return &last
}

// Count is the number of distinct bidders, ignoring Cap.
func (t Tracker) Count(bids []domain.Bid) int {
	seen := make(map[string]struct{}, len(bids))
	for _, b := range bids {
		seen[b.UserID] = struct{}{}
	}
	return len(seen)
}

func (t Tracker) Contains(bids []domain.Bid, userID string) bool {
	for _, b := range bids {
		if b.UserID == userID {
			return true
		}
	}
	return false
}
