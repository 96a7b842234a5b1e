package httperr

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"livebid/internal/apperr"
	"livebid/internal/bidding"
	"livebid/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestResponse(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "Too low", err: &bidding.RejectionError{Reason: bidding.ReasonTooLow, MinBid: 110}, wantCode: 422, wantBody: "too_low"},
		{name: "Full", err: bidding.ErrFull, wantCode: 422, wantBody: "full"},
		{name: "Input", err: apperr.Input("phone", "bad phone"), wantCode: 422, wantBody: "invalid_input"},
		{name: "Rate limited", err: &ratelimit.DeniedError{Action: ratelimit.ActionBid, RetryAfter: 30 * time.Second}, wantCode: 429, wantBody: "rate_limited"},
		{name: "Banned", err: &apperr.BannedError{Reason: "spam"}, wantCode: 403, wantBody: "banned"},
		{name: "Forbidden", err: apperr.ErrForbidden, wantCode: 403, wantBody: "forbidden"},
		{name: "Unauthorized", err: apperr.ErrUnauthorized, wantCode: 401, wantBody: "unauthorized"},
		{name: "Not found wrapped", err: fmt.Errorf("get: %w", apperr.ErrNotFound), wantCode: 404, wantBody: "not_found"},
		{name: "Stale", err: apperr.ErrStale, wantCode: 409, wantBody: "stale"},
		{name: "Store", err: apperr.Store("auction.get", errors.New("dial tcp: refused")), wantCode: 503, wantBody: "unavailable"},
		{name: "Unknown", err: errors.New("boom"), wantCode: 500, wantBody: "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := Response(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body.Code)
		})
	}
}

func TestResponse_HidesStoreDetails(t *testing.T) {
	_, body := Response(apperr.Store("auction.get", errors.New("dial tcp 10.0.0.3:6379: refused")))
	assert.NotContains(t, body.Error, "10.0.0.3")
}

func TestAbort_RetryAfterHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auctions/a1/bid", nil)

	Abort(c, &ratelimit.DeniedError{Action: ratelimit.ActionBid, RetryAfter: 1500 * time.Millisecond})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many bid attempts, retry in 2s","code":"rate_limited","retryAfter":2}`, w.Body.String())
	assert.True(t, c.IsAborted())
}
