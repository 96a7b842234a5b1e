package userrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"livebid/internal/apperr"
	"livebid/internal/domain"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrPhoneTaken = errors.New("phone already registered")

const userColumns = `id, phone, username, registered_at, last_login, total_bids,
       auctions_won, is_banned, ban_reason, banned_at, is_admin`

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var (
		u        domain.User
		bannedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Phone, &u.Username, &u.RegisteredAt, &u.LastLogin, &u.TotalBids,
		&u.AuctionsWon, &u.IsBanned, &u.BanReason, &bannedAt, &u.IsAdmin)
	if err != nil {
		return domain.User{}, err
	}
	if bannedAt.Valid {
		t := bannedAt.Time.UTC()
		u.BannedAt = &t
	}
	return u, nil
}

func (r *Repo) get(ctx context.Context, op, where string, arg any) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, apperr.ErrNotFound
	}
	if err != nil {
		return domain.User{}, apperr.Store(op, err)
	}
	return u, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.get(ctx, "user.get", "id = $1", id)
}

func (r *Repo) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	return r.get(ctx, "user.get_by_phone", "phone = $1", phone)
}

// Create inserts a new user. A concurrent registration of the same phone
// yields ErrPhoneTaken.
func (r *Repo) Create(ctx context.Context, u domain.User) error {
	const q = `INSERT INTO users (id, phone, username, registered_at, last_login, is_admin)
	           VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Phone, u.Username, u.RegisteredAt, u.LastLogin, u.IsAdmin)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrPhoneTaken
	}
	return apperr.Store("user.create", err)
}

func (r *Repo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "user.touch_login", `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
}

func (r *Repo) IncrementBids(ctx context.Context, id string) error {
	return r.exec(ctx, "user.increment_bids", `UPDATE users SET total_bids = total_bids + 1 WHERE id = $1`, id)
}

func (r *Repo) IncrementWins(ctx context.Context, id string) error {
	return r.exec(ctx, "user.increment_wins", `UPDATE users SET auctions_won = auctions_won + 1 WHERE id = $1`, id)
}

func (r *Repo) Ban(ctx context.Context, id, reason string, at time.Time) error {
	return r.exec(ctx, "user.ban",
		`UPDATE users SET is_banned = TRUE, ban_reason = $2, banned_at = $3 WHERE id = $1`, id, reason, at)
}

func (r *Repo) Unban(ctx context.Context, id string) error {
	return r.exec(ctx, "user.unban",
		`UPDATE users SET is_banned = FALSE, ban_reason = '', banned_at = NULL WHERE id = $1`, id)
}

// exec runs a single-row update and maps a missing row to ErrNotFound.
func (r *Repo) exec(ctx context.Context, op, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return apperr.Store(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Store(op, err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// List returns users newest first, only the banned ones when bannedOnly.
func (r *Repo) List(ctx context.Context, bannedOnly bool) ([]domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	if bannedOnly {
		q += ` WHERE is_banned`
	}
	q += ` ORDER BY registered_at DESC`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, apperr.Store("user.list", err)
	}
	defer rows.Close()

	list := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Store("user.list", err)
		}
		list = append(list, u)
	}
	return list, apperr.Store("user.list", rows.Err())
}

func (r *Repo) Count(ctx context.Context) (total, banned int, err error) {
	const q = `SELECT count(*), count(*) FILTER (WHERE is_banned) FROM users`
	if err = r.db.QueryRowContext(ctx, q).Scan(&total, &banned); err != nil {
		return 0, 0, apperr.Store("user.count", err)
	}
	return total, banned, nil
}
