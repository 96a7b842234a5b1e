package auction

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"livebid/internal/apperr"
	"livebid/internal/bidding"
	"livebid/internal/clock"
	"livebid/internal/domain"
	"livebid/internal/participants"
	"livebid/internal/ratelimit"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	finalizeTimeout     = 5 * time.Second
	maxFinalizeAttempts = 3
)

// AuctionView is an auction as shown to a bidder: the record plus the
// derived countdown, participant list and next acceptable bid.
type AuctionView struct {
	domain.Auction
	Clock           clock.View           `json:"clock"`
	ParticipantList []domain.Participant `json:"participantList"`
	LastBidder      *domain.Bid          `json:"lastBidder"`
	MinNextBid      int64                `json:"minNextBid"`
}

type BidReceipt struct {
	AuctionID    string     `json:"auctionId"`
	Bid          domain.Bid `json:"bid"`
	CurrentBid   int64      `json:"currentBid"`
	Participants int        `json:"participants"`
	MinNextBid   int64      `json:"minNextBid"`
}

type CreateRequest struct {
	Title           string `json:"title"           validate:"required,max=120"`
	Description     string `json:"description"     validate:"max=2000"`
	Image           string `json:"image"           validate:"omitempty,url"`
	StartingBid     int64  `json:"startingBid"     validate:"gt=0"`
	MinIncrement    int64  `json:"minIncrement"    validate:"gte=0"`
	ReservePrice    int64  `json:"reservePrice"    validate:"gte=0"`
	RequireReserve  bool   `json:"requireReserve"`
	MaxParticipants int    `json:"maxParticipants" validate:"min=1,max=100"`
	DurationMinutes int    `json:"durationMinutes" validate:"min=1,max=1440"`
}

type AuctionStore interface {
	Create(ctx context.Context, a domain.Auction, now time.Time) error
	Get(ctx context.Context, id string) (domain.Auction, error)
	List(ctx context.Context, status domain.Status) ([]domain.Auction, error)
	AppendBid(ctx context.Context, prev domain.Auction, acc *bidding.Accepted) error
	Finalize(ctx context.Context, prev, final domain.Auction) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	PublishFinished(ctx context.Context, a domain.Auction) error
	ToggleWatch(ctx context.Context, userID, auctionID string) (bool, error)
	Watched(ctx context.Context, userID string) ([]string, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	IncrementBids(ctx context.Context, id string) error
	IncrementWins(ctx context.Context, id string) error
}

type Archive interface {
	Archive(ctx context.Context, a domain.Auction) error
	Delete(ctx context.Context, id string) error
	Winners(ctx context.Context, limit int) ([]domain.FinishedAuction, error)
}

type Timers interface {
	Start(id string, end time.Time, onTick clock.TickFunc, onExpire clock.ExpireFunc)
	Cancel(id string)
}

type IAuctionService interface {
	Create(ctx context.Context, admin domain.User, req CreateRequest) (domain.Auction, error)
	Delete(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	PlaceBid(ctx context.Context, userID, auctionID string, amount int64) (*BidReceipt, error)
	Finalize(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*AuctionView, error)
	List(ctx context.Context, status domain.Status) ([]AuctionView, error)
	View(a domain.Auction) AuctionView
	Winners(ctx context.Context, limit int) ([]domain.FinishedAuction, error)
	MyBids(ctx context.Context, userID string) ([]domain.UserBid, error)
	ToggleWatch(ctx context.Context, userID, auctionID string) (bool, error)
	Watchlist(ctx context.Context, userID string) ([]AuctionView, error)
	Resume(ctx context.Context) error
}

type Rules struct {
	Validator bidding.Validator
	Tracker   participants.Tracker
	Clock     clock.Clock
}

type auctionService struct {
	store    AuctionStore
	users    UserStore
	archive  Archive
	limiter  ratelimit.Limiter
	timers   Timers
	rules    Rules
	validate *validator.Validate
	now      func() time.Time
}

var _ IAuctionService = (*auctionService)(nil)

func NewAuctionService(store AuctionStore, users UserStore, archive Archive, limiter ratelimit.Limiter,
	timers Timers, rules Rules) IAuctionService {
	return &auctionService{
		store:    store,
		users:    users,
		archive:  archive,
		limiter:  limiter,
		timers:   timers,
		rules:    rules,
		validate: validator.New(),
		now:      time.Now,
	}
}

// activeUser loads the acting user and rejects banned accounts.
func (svc *auctionService) activeUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := svc.users.GetByID(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return domain.User{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return domain.User{}, err
	}
	if u.IsBanned {
		return domain.User{}, &apperr.BannedError{Reason: u.BanReason}
	}
	return u, nil
}

// PlaceBid runs the gates in order (ban, rate limit, fresh read, deadline,
// rules) and commits the bid with a conditional write. A concurrent
// change surfaces as apperr.ErrStale and is not retried.
func (svc *auctionService) PlaceBid(ctx context.Context, userID, auctionID string, amount int64) (*BidReceipt, error) {
	u, err := svc.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := svc.now()
	if err := svc.limiter.CanBid(ctx, userID, now); err != nil {
		return nil, err
	}

	a, err := svc.store.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.Status == domain.StatusActive && clock.IsExpired(now, a.EndTime) {
		if err := svc.Finalize(ctx, auctionID); err != nil {
			zap.L().Warn("auction.finalize_on_bid", zap.String("auction_id", auctionID), zap.Error(err))
		}
		return nil, bidding.ErrNotActive
	}

	acc, err := svc.rules.Validator.Validate(a, u.Participant(), amount, now)
	if err != nil {
		return nil, err
	}
	if err := svc.store.AppendBid(ctx, a, acc); err != nil {
		return nil, err
	}

	if err := svc.users.IncrementBids(ctx, userID); err != nil {
		zap.L().Error("auction.increment_bids", zap.String("user_id", userID), zap.Error(err))
	}
	zap.L().Debug("auction.bid",
		zap.String("auction_id", auctionID),
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
	)

	next := a
	next.CurrentBid = acc.CurrentBid
	return &BidReceipt{
		AuctionID:    auctionID,
		Bid:          acc.Bid,
		CurrentBid:   acc.CurrentBid,
		Participants: acc.Participants,
		MinNextBid:   svc.rules.Validator.MinNextBid(&next),
	}, nil
}

// Finalize closes an auction once. The scheduler, the key-expiry watcher,
// an expired bid attempt and an admin stop may all race here; only the
// call that flips the status archives and announces the result. A bid
// landing between the read and the write restarts the attempt.
func (svc *auctionService) Finalize(ctx context.Context, id string) error {
	for attempt := 0; attempt < maxFinalizeAttempts; attempt++ {
		a, err := svc.store.Get(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			svc.timers.Cancel(id)
			return nil
		}
		if err != nil {
			return err
		}
		final, changed := clock.Finalize(a)
		if !changed {
			svc.timers.Cancel(id)
			return nil
		}

		closed, err := svc.store.Finalize(ctx, a, final)
		if errors.Is(err, apperr.ErrStale) {
			continue
		}
		if err != nil {
			return err
		}
		svc.timers.Cancel(id)
		if closed {
			svc.announce(ctx, final)
		}
		return nil
	}
	return apperr.ErrStale
}

// announce books the result of a freshly closed auction.
func (svc *auctionService) announce(ctx context.Context, a domain.Auction) {
	if a.Winner != nil {
		if err := svc.users.IncrementWins(ctx, a.Winner.UserID); err != nil {
			zap.L().Error("auction.increment_wins", zap.String("user_id", a.Winner.UserID), zap.Error(err))
		}
	}
	if err := svc.archive.Archive(ctx, a); err != nil {
		zap.L().Error("auction.archive", zap.String("auction_id", a.ID), zap.Error(err))
	}
	if err := svc.store.PublishFinished(ctx, a); err != nil {
		zap.L().Warn("auction.publish_finished", zap.String("auction_id", a.ID), zap.Error(err))
	}

	fields := []zap.Field{zap.String("auction_id", a.ID), zap.Int64("final_bid", a.CurrentBid)}
	if a.Winner != nil {
		fields = append(fields, zap.String("winner_id", a.Winner.UserID))
	}
	zap.L().Info("auction.finalized", fields...)
}

func (svc *auctionService) onExpire(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if err := svc.Finalize(ctx, id); err != nil {
		zap.L().Error("auction.finalize", zap.String("auction_id", id), zap.Error(err))
	}
}

func (svc *auctionService) arm(a domain.Auction) {
	svc.timers.Start(a.ID, a.EndTime, nil, svc.onExpire)
}

func (svc *auctionService) Create(ctx context.Context, admin domain.User, req CreateRequest) (domain.Auction, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := svc.checkCreate(req); err != nil {
		return domain.Auction{}, err
	}

	now := svc.now().UTC()
	a := domain.Auction{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Description:     req.Description,
		Image:           req.Image,
		StartingBid:     req.StartingBid,
		CurrentBid:      req.StartingBid,
		MinIncrement:    req.MinIncrement,
		ReservePrice:    req.ReservePrice,
		RequireReserve:  req.RequireReserve,
		MaxParticipants: req.MaxParticipants,
		Bids:            []domain.Bid{},
		Status:          domain.StatusActive,
		EndTime:         now.Add(time.Duration(req.DurationMinutes) * time.Minute).Truncate(time.Millisecond),
		CreatedBy:       admin.Username,
		CreatedByID:     admin.ID,
		CreatedAt:       now.Truncate(time.Millisecond),
	}
	if err := svc.store.Create(ctx, a, now); err != nil {
		return domain.Auction{}, err
	}
	svc.arm(a)
	zap.L().Info("auction.created", zap.String("auction_id", a.ID), zap.Time("end_time", a.EndTime))
	return a, nil
}

func (svc *auctionService) checkCreate(req CreateRequest) error {
	err := svc.validate.Struct(req)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return apperr.Input(lowerFirst(f.Field()), createMessages[f.Field()])
	}
	if err != nil {
		return err
	}

	inc := req.MinIncrement
	if inc == 0 {
		inc = svc.rules.Validator.Increment(&domain.Auction{})
	}
	if req.StartingBid < inc || req.StartingBid%inc != 0 {
		return apperr.Input("startingBid", "starting bid must be a positive multiple of the increment")
	}
	if req.RequireReserve && req.ReservePrice == 0 {
		return apperr.Input("reservePrice", "a required reserve needs a reserve price")
	}
	return nil
}

var createMessages = map[string]string{
	"Title":           "title is required (max 120 characters)",
	"Description":     "description is too long",
	"Image":           "image must be a URL",
	"StartingBid":     "starting bid must be positive",
	"MinIncrement":    "increment cannot be negative",
	"ReservePrice":    "reserve price cannot be negative",
	"MaxParticipants": "max participants must be between 1 and 100",
	"DurationMinutes": "duration must be between 1 and 1440 minutes",
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Delete removes an auction and cancels its clock.
func (svc *auctionService) Delete(ctx context.Context, id string) error {
	svc.timers.Cancel(id)
	ok, err := svc.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	if err := svc.archive.Delete(ctx, id); err != nil {
		zap.L().Warn("auction.archive_delete", zap.String("auction_id", id), zap.Error(err))
	}
	zap.L().Info("auction.deleted", zap.String("auction_id", id))
	return nil
}

// Stop ends a running auction before its deadline.
func (svc *auctionService) Stop(ctx context.Context, id string) error {
	a, err := svc.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != domain.StatusActive {
		return bidding.ErrNotActive
	}
	return svc.Finalize(ctx, id)
}

func (svc *auctionService) View(a domain.Auction) AuctionView {
	return AuctionView{
		Auction:         a,
		Clock:           svc.rules.Clock.Snapshot(svc.now(), a.EndTime),
		ParticipantList: svc.rules.Tracker.Unique(a.Bids),
		LastBidder:      svc.rules.Tracker.LastBidder(a.Bids),
		MinNextBid:      svc.rules.Validator.MinNextBid(&a),
	}
}

func (svc *auctionService) Get(ctx context.Context, id string) (*AuctionView, error) {
	a, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := svc.View(a)
	return &v, nil
}

func (svc *auctionService) List(ctx context.Context, status domain.Status) ([]AuctionView, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Input("status", "status must be active or finished")
	}
	list, err := svc.store.List(ctx, status)
	if err != nil {
		return nil, err
	}
	views := make([]AuctionView, 0, len(list))
	for _, a := range list {
		views = append(views, svc.View(a))
	}
	return views, nil
}

func (svc *auctionService) Winners(ctx context.Context, limit int) ([]domain.FinishedAuction, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return svc.archive.Winners(ctx, limit)
}

// MyBids lists every bid of the user across the stored auctions, newest first.
func (svc *auctionService) MyBids(ctx context.Context, userID string) ([]domain.UserBid, error) {
	all, err := svc.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserBid, 0)
	for _, a := range all {
		for _, b := range a.Bids {
			if b.UserID != userID {
				continue
			}
			out = append(out, domain.UserBid{
				Bid:          b,
				AuctionID:    a.ID,
				AuctionTitle: a.Title,
				CurrentBid:   a.CurrentBid,
				Status:       a.Status,
				EndTime:      a.EndTime,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// ToggleWatch adds or removes the auction from the user's watchlist and
// reports whether it is watched afterwards.
func (svc *auctionService) ToggleWatch(ctx context.Context, userID, auctionID string) (bool, error) {
	if _, err := svc.activeUser(ctx, userID); err != nil {
		return false, err
	}
	if err := svc.limiter.CanWatch(ctx, userID, svc.now()); err != nil {
		return false, err
	}
	if _, err := svc.store.Get(ctx, auctionID); err != nil {
		return false, err
	}
	return svc.store.ToggleWatch(ctx, userID, auctionID)
}

func (svc *auctionService) Watchlist(ctx context.Context, userID string) ([]AuctionView, error) {
	ids, err := svc.store.Watched(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]AuctionView, 0, len(ids))
	for _, id := range ids {
		a, err := svc.store.Get(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		views = append(views, svc.View(a))
	}
	return views, nil
}

// Resume re-arms the clocks of the active auctions after a restart and
// closes those whose deadline passed while the process was down.
func (svc *auctionService) Resume(ctx context.Context) error {
	active, err := svc.store.List(ctx, domain.StatusActive)
	if err != nil {
		return err
	}
	now := svc.now()
	for _, a := range active {
		if clock.IsExpired(now, a.EndTime) {
			if err := svc.Finalize(ctx, a.ID); err != nil {
				zap.L().Error("auction.resume_finalize", zap.String("auction_id", a.ID), zap.Error(err))
			}
			continue
		}
		svc.arm(a)
	}
	zap.L().Info("auction.resumed", zap.Int("active", len(active)))
	return nil
}
