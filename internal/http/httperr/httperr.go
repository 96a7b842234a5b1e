// Package httperr maps service errors to HTTP responses.
package httperr

import (
	"errors"
	"net/http"
	"strconv"

	"livebid/internal/apperr"
	"livebid/internal/bidding"
	"livebid/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const unavailable = "service temporarily unavailable, please try again"

type ErrorResponse struct {
	Error      string `json:"error"                example:"minimum bid is 110"`
	Code       string `json:"code,omitempty"       example:"too_low"`
	Field      string `json:"field,omitempty"`
	MinBid     int64  `json:"minBid,omitempty"     example:"110"`
	RetryAfter int    `json:"retryAfter,omitempty" example:"30"`
} // @name ErrorResponse

// Response classifies err.
func Response(err error) (int, ErrorResponse) {
	var (
		rej    *bidding.RejectionError
		input  *apperr.InputError
		denied *ratelimit.DeniedError
		banned *apperr.BannedError
		store  *apperr.StoreError
	)
	switch {
	case errors.As(err, &rej):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: rej.Error(), Code: string(rej.Reason), MinBid: rej.MinBid}
	case errors.As(err, &input):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: input.Message, Code: "invalid_input", Field: input.Field}
	case errors.As(err, &denied):
		return http.StatusTooManyRequests, ErrorResponse{Error: denied.Error(), Code: "rate_limited", RetryAfter: denied.RetryAfterSeconds()}
	case errors.As(err, &banned):
		return http.StatusForbidden, ErrorResponse{Error: banned.Error(), Code: "banned"}
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "forbidden"}
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "unauthorized"}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, apperr.ErrStale):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "stale"}
	case errors.As(err, &store):
		return http.StatusServiceUnavailable, ErrorResponse{Error: unavailable, Code: "unavailable"}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"}
}

// Abort writes the response for err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	status, body := Response(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("http.error",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	if body.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	c.AbortWithStatusJSON(status, body)
}

// BadRequest rejects a body or query that failed to bind.
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"})
}
