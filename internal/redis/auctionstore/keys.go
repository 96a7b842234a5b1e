package auctionstore

const (
	keyPrefix   = "auc:"
	TimerPrefix = "auc_t:"
	allSet      = "aucs:all"
	activeSet   = "aucs:active"
	watchPrefix = "watch:"

	// BidStream receives one entry per accepted bid (aid, uid, uname,
	// amount, at).
	BidStream = "bids_stream"
	// LobbyChannel carries list-level changes (created, bid, finished, deleted).
	LobbyChannel = "aucs:events"
)

func AuctionKey(id string) string    { return keyPrefix + id }
func BidsKey(id string) string       { return keyPrefix + id + ":bids" }
func TimerKey(id string) string      { return TimerPrefix + id }
func EventsChannel(id string) string { return keyPrefix + id + ":events" }
func watchKey(userID string) string  { return watchPrefix + userID }
