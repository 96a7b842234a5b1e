// Package auctionstore keeps live auctions in Redis. Every write that
// touches bidding state goes through the livebid Lua library so it is
// applied atomically.
package auctionstore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"livebid/internal/apperr"
	"livebid/internal/bidding"
	"livebid/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventCreated  = "created"
	EventBid      = "bid"
	EventFinished = "finished"
	EventDeleted  = "deleted"
)

var ErrExists = errors.New("auction already exists")

// Event is published on the auction channel and the lobby channel.
type Event struct {
	Event        string         `json:"event"`
	AuctionID    string         `json:"auction_id"`
	Bid          *domain.Bid    `json:"bid,omitempty"`
	CurrentBid   int64          `json:"current_bid,omitempty"`
	Participants int            `json:"participants,omitempty"`
	Status       domain.Status  `json:"status,omitempty"`
	Winner       *domain.Winner `json:"winner,omitempty"`
}

type Store struct {
	rdc redis.Cmdable
}

func New(rdc redis.Cmdable) *Store {
	return &Store{rdc: rdc}
}

// Create stores a new active auction and arms its expiry key.
func (s *Store) Create(ctx context.Context, a domain.Auction, now time.Time) error {
	ttl := a.EndTime.Sub(now)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	lobby, err := json.Marshal(Event{Event: EventCreated, AuctionID: a.ID, Status: domain.StatusActive})
	if err != nil {
		return err
	}

	err = s.rdc.FCall(ctx, "auction_create",
		[]string{AuctionKey(a.ID), TimerKey(a.ID), allSet, activeSet},
		a.ID,
		a.Title,
		a.Description,
		a.Image,
		a.StartingBid,
		a.MinIncrement,
		a.ReservePrice,
		boolArg(a.RequireReserve),
		a.MaxParticipants,
		a.EndTime.UnixMilli(),
		a.CreatedBy,
		a.CreatedByID,
		a.CreatedAt.UnixMilli(),
		ttl.Milliseconds(),
		LobbyChannel,
		string(lobby),
	).Err()
	return scriptErr("auction.create", err)
}

// Get reads the hash and the bid list in one MULTI so both halves describe
// the same version of the auction.
func (s *Store) Get(ctx context.Context, id string) (domain.Auction, error) {
	var (
		hash *redis.MapStringStringCmd
		bids *redis.StringSliceCmd
	)
	_, err := s.rdc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		hash = p.HGetAll(ctx, AuctionKey(id))
		bids = p.LRange(ctx, BidsKey(id), 0, -1)
		return nil
	})
	if err != nil {
		return domain.Auction{}, apperr.Store("auction.get", err)
	}
	if len(hash.Val()) == 0 {
		return domain.Auction{}, apperr.ErrNotFound
	}
	a, err := decode(hash.Val(), bids.Val())
	if err != nil {
		return domain.Auction{}, apperr.Store("auction.decode", err)
	}
	return a, nil
}

// List returns the auctions with the given status, or all of them when
// status is empty, soonest deadline first. Records that fail to decode are
// logged and skipped.
func (s *Store) List(ctx context.Context, status domain.Status) ([]domain.Auction, error) {
	set := allSet
	if status == domain.StatusActive {
		set = activeSet
	}
	ids, err := s.rdc.SMembers(ctx, set).Result()
	if err != nil {
		return nil, apperr.Store("auction.list", err)
	}
	sort.Strings(ids)

	out := make([]domain.Auction, 0, len(ids))
	for _, id := range ids {
		a, err := s.Get(ctx, id)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			continue
		case errors.Is(err, domain.ErrInvalidAuction):
			zap.L().Warn("auction.list.skip", zap.String("auction_id", id), zap.Error(err))
			continue
		case err != nil:
			return nil, err
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

// AppendBid commits an accepted bid computed from prev. The write fails
// with apperr.ErrStale when the auction moved on since prev was read and
// with bidding.ErrNotActive when it closed meanwhile.
func (s *Store) AppendBid(ctx context.Context, prev domain.Auction, acc *bidding.Accepted) error {
	bid, err := json.Marshal(acc.Bid)
	if err != nil {
		return err
	}
	ev := Event{
		Event:        EventBid,
		AuctionID:    prev.ID,
		Bid:          &acc.Bid,
		CurrentBid:   acc.CurrentBid,
		Participants: acc.Participants,
		Status:       domain.StatusActive,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	err = s.rdc.FCall(ctx, "auction_place_bid",
		[]string{AuctionKey(prev.ID), BidsKey(prev.ID), BidStream},
		prev.CurrentBid,
		len(prev.Bids),
		acc.Bid.UserID,
		acc.Bid.Username,
		acc.CurrentBid,
		acc.Bid.Timestamp.UnixMilli(),
		string(bid),
		acc.Participants,
		EventsChannel(prev.ID),
		string(payload),
	).Err()
	if err = scriptErr("auction.place_bid", err); err != nil {
		return err
	}
	s.publishLobby(ctx, ev)
	return nil
}

// Finalize writes final, the closed form of prev, if the auction is still
// active and has not received a bid since prev was read. It reports
// whether this call closed it.
func (s *Store) Finalize(ctx context.Context, prev, final domain.Auction) (bool, error) {
	var winnerID, winnerName string
	if final.Winner != nil {
		winnerID, winnerName = final.Winner.UserID, final.Winner.Username
	}
	n, err := s.rdc.FCall(ctx, "auction_finalize",
		[]string{AuctionKey(prev.ID), BidsKey(prev.ID), activeSet, TimerKey(prev.ID)},
		prev.ID,
		len(prev.Bids),
		winnerID,
		winnerName,
	).Int()
	if err = scriptErr("auction.finalize", err); err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete removes the auction and its bids. It reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	lobby, err := json.Marshal(Event{Event: EventDeleted, AuctionID: id})
	if err != nil {
		return false, err
	}
	n, err := s.rdc.FCall(ctx, "auction_delete",
		[]string{AuctionKey(id), BidsKey(id), allSet, activeSet, TimerKey(id)},
		id,
		LobbyChannel,
		string(lobby),
	).Int()
	if err = scriptErr("auction.delete", err); err != nil {
		return false, err
	}
	return n == 1, nil
}

// PublishFinished announces a closed auction on its own channel and the lobby.
func (s *Store) PublishFinished(ctx context.Context, a domain.Auction) error {
	ev := Event{
		Event:        EventFinished,
		AuctionID:    a.ID,
		CurrentBid:   a.CurrentBid,
		Participants: a.Participants,
		Status:       a.Status,
		Winner:       a.Winner,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.rdc.Publish(ctx, EventsChannel(a.ID), payload).Err(); err != nil {
		return apperr.Store("auction.publish", err)
	}
	s.publishLobby(ctx, ev)
	return nil
}

func (s *Store) publishLobby(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err == nil {
		err = s.rdc.Publish(ctx, LobbyChannel, payload).Err()
	}
	if err != nil {
		zap.L().Warn("auction.publish_lobby", zap.String("auction_id", ev.AuctionID), zap.Error(err))
	}
}

// ToggleWatch flips auctionID in the user's watch set and reports whether
// the auction is watched afterwards.
func (s *Store) ToggleWatch(ctx context.Context, userID, auctionID string) (bool, error) {
	key := watchKey(userID)
	watching, err := s.rdc.SIsMember(ctx, key, auctionID).Result()
	if err != nil {
		return false, apperr.Store("watch.get", err)
	}
	if watching {
		err = s.rdc.SRem(ctx, key, auctionID).Err()
	} else {
		err = s.rdc.SAdd(ctx, key, auctionID).Err()
	}
	if err != nil {
		return false, apperr.Store("watch.set", err)
	}
	return !watching, nil
}

func (s *Store) Watched(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.rdc.SMembers(ctx, watchKey(userID)).Result()
	if err != nil {
		return nil, apperr.Store("watch.list", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// scriptErr maps the error replies of the livebid functions.
func scriptErr(op string, err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not_found"):
		return apperr.ErrNotFound
	case strings.Contains(msg, "auction_closed"):
		return bidding.ErrNotActive
	case strings.Contains(msg, "stale"):
		return apperr.ErrStale
	case strings.Contains(msg, "auction_exists"):
		return ErrExists
	}
	return apperr.Store(op, err)
}

// ParseStreamBid decodes one bids_stream entry.
func ParseStreamBid(values map[string]interface{}) (auctionID string, b domain.Bid, err error) {
	str := func(k string) string {
		v, _ := values[k].(string)
		return v
	}
	auctionID = str("aid")
	if auctionID == "" {
		return "", b, errors.New("stream entry without auction id")
	}
	if b.Amount, err = strconv.ParseInt(str("amount"), 10, 64); err != nil {
		return "", b, err
	}
	at, err := strconv.ParseInt(str("at"), 10, 64)
	if err != nil {
		return "", b, err
	}
	b.UserID = str("uid")
	b.Username = str("uname")
	b.Timestamp = time.UnixMilli(at).UTC()
	return auctionID, b, nil
}
