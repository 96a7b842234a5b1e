package adminhandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"livebid/internal/apperr"
	"livebid/internal/bidding"
	"livebid/internal/domain"
	"livebid/internal/http/middleware"
	"livebid/internal/services/auction"
	"livebid/internal/services/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuctions struct {
	auction.IAuctionService
	created auction.CreateRequest
	creator string
	stopErr error
	delErr  error
}

func (s *stubAuctions) Create(_ context.Context, admin domain.User, req auction.CreateRequest) (domain.Auction, error) {
	s.created, s.creator = req, admin.ID
	return domain.Auction{ID: "a1", Title: req.Title}, nil
}

func (s *stubAuctions) Stop(context.Context, string) error   { return s.stopErr }
func (s *stubAuctions) Delete(context.Context, string) error { return s.delErr }

type stubUsers struct {
	user.IUserService
	banned     string
	banReason  string
	bannedOnly bool
}

func (s *stubUsers) Authenticate(_ context.Context, token string) (domain.User, error) {
	switch token {
	case "admin":
		return domain.User{ID: "u0", Username: "root", IsAdmin: true}, nil
	case "user":
		return domain.User{ID: "u1", Username: "ann"}, nil
	}
	return domain.User{}, apperr.ErrUnauthorized
}

func (s *stubUsers) Ban(_ context.Context, admin domain.User, id, reason string) error {
	if admin.ID == id {
		return apperr.ErrForbidden
	}
	s.banned, s.banReason = id, reason
	return nil
}

func (s *stubUsers) List(_ context.Context, bannedOnly bool) ([]domain.User, error) {
	s.bannedOnly = bannedOnly
	return []domain.User{}, nil
}

func (s *stubUsers) Export(_ context.Context, kind string) (any, error) {
	if kind != "users" && kind != "auctions" {
		return nil, apperr.Input("type", "bad type")
	}
	return []string{}, nil
}

func newEngine(a *stubAuctions, u *stubUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(a, u).Register(r.Group("/", middleware.Auth(u), middleware.RequireAdmin()))
	return r
}

func do(r http.Handler, token, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	r := newEngine(&stubAuctions{}, &stubUsers{})
	assert.Equal(t, http.StatusForbidden, do(r, "user", http.MethodGet, "/admin/users", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "nobody", http.MethodGet, "/admin/users", "").Code)
}

func TestCreateAuction(t *testing.T) {
	a := &stubAuctions{}
	r := newEngine(a, &stubUsers{})

	w := do(r, "admin", http.MethodPost, "/admin/auctions",
		`{"title":"Lamp","startingBid":100,"maxParticipants":5,"durationMinutes":30}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Lamp", a.created.Title)
	assert.Equal(t, int64(100), a.created.StartingBid)
	assert.Equal(t, "u0", a.creator)
}

func TestStopAndDelete(t *testing.T) {
	tests := []struct {
		name     string
		auctions *stubAuctions
		method   string
		path     string
		wantCode int
	}{
		{name: "Stop", auctions: &stubAuctions{}, method: http.MethodPost, path: "/admin/auctions/a1/stop", wantCode: http.StatusAccepted},
		{name: "Stop finished", auctions: &stubAuctions{stopErr: bidding.ErrNotActive}, method: http.MethodPost, path: "/admin/auctions/a1/stop", wantCode: http.StatusUnprocessableEntity},
		{name: "Delete", auctions: &stubAuctions{}, method: http.MethodDelete, path: "/admin/auctions/a1", wantCode: http.StatusNoContent},
		{name: "Delete missing", auctions: &stubAuctions{delErr: apperr.ErrNotFound}, method: http.MethodDelete, path: "/admin/auctions/a1", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newEngine(tt.auctions, &stubUsers{}), "admin", tt.method, tt.path, "")
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestBan(t *testing.T) {
	u := &stubUsers{}
	r := newEngine(&stubAuctions{}, u)

	w := do(r, "admin", http.MethodPost, "/admin/users/u1/ban", `{"reason":"shill bidding"}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u1", u.banned)
	assert.Equal(t, "shill bidding", u.banReason)

	assert.Equal(t, http.StatusBadRequest, do(r, "admin", http.MethodPost, "/admin/users/u1/ban", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "admin", http.MethodPost, "/admin/users/u0/ban", `{"reason":"x"}`).Code)
}

func TestListUsersAndExport(t *testing.T) {
	u := &stubUsers{}
	r := newEngine(&stubAuctions{}, u)

	require.Equal(t, http.StatusOK, do(r, "admin", http.MethodGet, "/admin/users?banned=true", "").Code)
	assert.True(t, u.bannedOnly)

	w := do(r, "admin", http.MethodGet, "/admin/export/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="users.json"`, w.Header().Get("Content-Disposition"))

	assert.Equal(t, http.StatusUnprocessableEntity, do(r, "admin", http.MethodGet, "/admin/export/bids", "").Code)
}
