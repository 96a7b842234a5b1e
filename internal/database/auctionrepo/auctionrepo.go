// Package auctionrepo is the Postgres archive of auctions and bids. Redis
// stays authoritative while an auction runs; rows here are a mirror that
// freezes once the auction is archived as finished.
package auctionrepo

import (
	"context"
	"database/sql"

	"livebid/internal/apperr"
	"livebid/internal/domain"
)

const upsertAuction = `
INSERT INTO auctions (id, title, description, image, starting_bid, current_bid, min_increment,
                      reserve_price, require_reserve, max_participants, participants, status, end_time,
                      created_by, created_by_id, created_at, winner_id, winner_username, updated_at)
     VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now())
ON CONFLICT (id) DO UPDATE
        SET current_bid     = EXCLUDED.current_bid,
            participants    = EXCLUDED.participants,
            status          = EXCLUDED.status,
            winner_id       = EXCLUDED.winner_id,
            winner_username = EXCLUDED.winner_username,
            updated_at      = now()
      WHERE auctions.status <> 'finished'`

const insertBid = `
INSERT INTO bids (auction_id, user_id, username, amount, placed_at)
     VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING`

// StreamBid is a bid tagged with its auction, as read from the bid stream.
type StreamBid struct {
	AuctionID string
	domain.Bid
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func upsert(ctx context.Context, ex execer, a domain.Auction) error {
	var winnerID, winnerName sql.NullString
	if a.Winner != nil {
		winnerID = sql.NullString{String: a.Winner.UserID, Valid: true}
		winnerName = sql.NullString{String: a.Winner.Username, Valid: true}
	}
	_, err := ex.ExecContext(ctx, upsertAuction,
		a.ID, a.Title, a.Description, a.Image, a.StartingBid, a.CurrentBid, a.MinIncrement,
		a.ReservePrice, a.RequireReserve, a.MaxParticipants, a.Participants, string(a.Status), a.EndTime,
		a.CreatedBy, a.CreatedByID, a.CreatedAt, winnerID, winnerName,
	)
	return err
}

// Mirror upserts a batch of live snapshots in one transaction.
func (r *Repo) Mirror(ctx context.Context, list []domain.Auction) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("auction.mirror", err)
	}
	defer tx.Rollback()

	for _, a := range list {
		if err := upsert(ctx, tx, a); err != nil {
			return apperr.Store("auction.mirror", err)
		}
	}
	return apperr.Store("auction.mirror", tx.Commit())
}

// Archive stores the final state of a finished auction with all its bids.
func (r *Repo) Archive(ctx context.Context, a domain.Auction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("auction.archive", err)
	}
	defer tx.Rollback()

	if err := upsert(ctx, tx, a); err != nil {
		return apperr.Store("auction.archive", err)
	}
	for _, b := range a.Bids {
		if _, err := tx.ExecContext(ctx, insertBid, a.ID, b.UserID, b.Username, b.Amount, b.Timestamp); err != nil {
			return apperr.Store("auction.archive", err)
		}
	}
	return apperr.Store("auction.archive", tx.Commit())
}

// InsertBids persists stream entries; replays are ignored.
func (r *Repo) InsertBids(ctx context.Context, bids []StreamBid) error {
	if len(bids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("bid.insert", err)
	}
	defer tx.Rollback()

	for _, b := range bids {
		if _, err := tx.ExecContext(ctx, insertBid, b.AuctionID, b.UserID, b.Username, b.Amount, b.Timestamp); err != nil {
			return apperr.Store("bid.insert", err)
		}
	}
	return apperr.Store("bid.insert", tx.Commit())
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("auction.delete", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE auction_id = $1`, id); err != nil {
		return apperr.Store("auction.delete", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM auctions WHERE id = $1`, id); err != nil {
		return apperr.Store("auction.delete", err)
	}
	return apperr.Store("auction.delete", tx.Commit())
}

// Winners lists finished auctions that have a winner, latest first.
func (r *Repo) Winners(ctx context.Context, limit int) ([]domain.FinishedAuction, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT id, title, current_bid, end_time, winner_id, winner_username
  FROM auctions
 WHERE status = 'finished' AND winner_id IS NOT NULL
 ORDER BY end_time DESC
 LIMIT $1`

	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, apperr.Store("auction.winners", err)
	}
	defer rows.Close()

	list := make([]domain.FinishedAuction, 0, limit)
	for rows.Next() {
		var (
			f domain.FinishedAuction
			w domain.Winner
		)
		if err := rows.Scan(&f.ID, &f.Title, &f.CurrentBid, &f.EndTime, &w.UserID, &w.Username); err != nil {
			return nil, apperr.Store("auction.winners", err)
		}
		f.EndTime = f.EndTime.UTC()
		f.Winner = &w
		list = append(list, f)
	}
	return list, apperr.Store("auction.winners", rows.Err())
}
