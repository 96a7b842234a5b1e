package user

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"livebid/internal/apperr"
	"livebid/internal/auth"
	"livebid/internal/database/userrepo"
	"livebid/internal/domain"
	"livebid/internal/ratelimit"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	phoneRe    = regexp.MustCompile(`^[0-9]{7,10}$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

type LoginRequest struct {
	Phone    string `json:"phone"    validate:"required,phone"    example:"71234567"`
	Username string `json:"username" validate:"required,username" example:"collector_42"`
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByPhone(ctx context.Context, phone string) (domain.User, error)
	Create(ctx context.Context, u domain.User) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	Ban(ctx context.Context, id, reason string, at time.Time) error
	Unban(ctx context.Context, id string) error
	List(ctx context.Context, bannedOnly bool) ([]domain.User, error)
	Count(ctx context.Context) (total, banned int, err error)
}

// AuctionLister feeds platform statistics and exports.
type AuctionLister interface {
	List(ctx context.Context, status domain.Status) ([]domain.Auction, error)
}

type Tokens interface {
	GenerateJWT(userID string, now time.Time) (string, time.Time, error)
	ValidateToken(token string, now time.Time) (*auth.Claims, error)
}

type IUserService interface {
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Authenticate(ctx context.Context, token string) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	Ban(ctx context.Context, admin domain.User, id, reason string) error
	Unban(ctx context.Context, id string) error
	List(ctx context.Context, bannedOnly bool) ([]domain.User, error)
	Stats(ctx context.Context) (domain.Stats, error)
	Export(ctx context.Context, kind string) (any, error)
}

type userService struct {
	users       UserStore
	auctions    AuctionLister
	limiter     ratelimit.Limiter
	tokens      Tokens
	adminPhones map[string]struct{}
	validate    *validator.Validate
	now         func() time.Time
}

var _ IUserService = (*userService)(nil)

func NewUserService(users UserStore, auctions AuctionLister, limiter ratelimit.Limiter, tokens Tokens, adminPhones []string) IUserService {
	admins := make(map[string]struct{}, len(adminPhones))
	for _, p := range adminPhones {
		admins[strings.TrimSpace(p)] = struct{}{}
	}
	return &userService{
		users:       users,
		auctions:    auctions,
		limiter:     limiter,
		tokens:      tokens,
		adminPhones: admins,
		validate:    newValidator(),
		now:         time.Now,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return v
}

func (s *userService) checkLogin(req LoginRequest) error {
	err := s.validate.Struct(req)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch f := verrs[0]; f.Field() {
	case "Phone":
		if f.Tag() == "required" {
			return apperr.Input("phone", "phone is required")
		}
		return apperr.Input("phone", "phone must have 7 to 10 digits")
	case "Username":
		if f.Tag() == "required" {
			return apperr.Input("username", "username is required")
		}
		return apperr.Input("username", "username must have 3 to 20 letters, digits or _")
	}
	return apperr.Input(strings.ToLower(verrs[0].Field()), verrs[0].Error())
}

// Login signs a user in by phone and username, registering the phone on
// first use. A known phone only signs in with the username it registered.
func (s *userService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	now := s.now().UTC()
	req.Phone = strings.TrimSpace(req.Phone)
	req.Username = strings.TrimSpace(req.Username)
	if err := s.checkLogin(req); err != nil {
		return nil, err
	}
	if err := s.limiter.CanLogin(ctx, req.Phone, now); err != nil {
		zap.L().Info("user.login.limited", zap.String("phone", req.Phone), zap.Error(err))
		return nil, err
	}

	u, err := s.users.GetByPhone(ctx, req.Phone)
	fresh := false
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		u, fresh, err = s.register(ctx, req, now)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}
	// A mismatch leaves the attempt counted against the phone.
	if u.Username != req.Username {
		zap.L().Info("user.login.username_mismatch", zap.String("phone", req.Phone))
		return nil, apperr.ErrUnauthorized
	}
	if !fresh {
		if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
			return nil, err
		}
		u.LastLogin = now
	}

	if err := s.limiter.ResetLoginAttempts(ctx, req.Phone); err != nil {
		zap.L().Warn("user.login.reset_attempts", zap.Error(err))
	}

	token, exp, err := s.tokens.GenerateJWT(u.ID, now)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// register creates the account for a new phone. It reports false when a
// concurrent login registered the phone first and that account is returned.
func (s *userService) register(ctx context.Context, req LoginRequest, now time.Time) (domain.User, bool, error) {
	_, admin := s.adminPhones[req.Phone]
	u := domain.User{
		ID:           uuid.NewString(),
		Phone:        req.Phone,
		Username:     req.Username,
		RegisteredAt: now,
		LastLogin:    now,
		IsAdmin:      admin,
	}
	err := s.users.Create(ctx, u)
	if errors.Is(err, userrepo.ErrPhoneTaken) {
		existing, err := s.users.GetByPhone(ctx, req.Phone)
		return existing, false, err
	}
	if err != nil {
		return domain.User{}, false, err
	}
	zap.L().Info("user.registered", zap.String("user_id", u.ID), zap.Bool("admin", admin))
	return u, true, nil
}

func (s *userService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.ValidateToken(token, s.now())
	if err != nil {
		return domain.User{}, apperr.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return domain.User{}, apperr.ErrUnauthorized
	}
	return u, err
}

func (s *userService) Get(ctx context.Context, id string) (domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) Ban(ctx context.Context, admin domain.User, id, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.Input("reason", "a ban reason is required")
	}
	if id == admin.ID {
		return apperr.ErrForbidden
	}
	if err := s.users.Ban(ctx, id, reason, s.now().UTC()); err != nil {
		return err
	}
	zap.L().Info("user.banned", zap.String("user_id", id), zap.String("by", admin.ID), zap.String("reason", reason))
	return nil
}

func (s *userService) Unban(ctx context.Context, id string) error {
	if err := s.users.Unban(ctx, id); err != nil {
		return err
	}
	zap.L().Info("user.unbanned", zap.String("user_id", id))
	return nil
}

func (s *userService) List(ctx context.Context, bannedOnly bool) ([]domain.User, error) {
	return s.users.List(ctx, bannedOnly)
}

func (s *userService) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	var err error
	if st.TotalUsers, st.BannedUsers, err = s.users.Count(ctx); err != nil {
		return st, err
	}
	all, err := s.auctions.List(ctx, "")
	if err != nil {
		return st, err
	}
	st.TotalAuctions = len(all)
	for _, a := range all {
		if a.Status == domain.StatusActive {
			st.ActiveAuctions++
		} else {
			st.FinishedAuctions++
		}
	}
	return st, nil
}

const (
	ExportAuctions = "auctions"
	ExportUsers    = "users"
)

// Export returns every record of kind for a JSON download.
func (s *userService) Export(ctx context.Context, kind string) (any, error) {
	switch kind {
	case ExportAuctions:
		return s.auctions.List(ctx, "")
	case ExportUsers:
		return s.users.List(ctx, false)
	}
	return nil, apperr.Input("type", "export type must be auctions or users")
}
