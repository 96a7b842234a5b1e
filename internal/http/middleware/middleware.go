// Package middleware holds the gin middleware shared by the REST handlers.
package middleware

import (
	"context"
	"strings"

	"livebid/internal/apperr"
	"livebid/internal/domain"
	"livebid/internal/http/httperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	userKey      = "user"
	requestIDKey = "request_id"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

// Auth resolves the bearer token to a user. The user is re-read on every
// request so bans and role changes apply immediately.
func Auth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			httperr.Abort(c, apperr.ErrUnauthorized)
			return
		}
		u, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			httperr.Abort(c, err)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			httperr.Abort(c, apperr.ErrUnauthorized)
			return
		}
		if !u.IsAdmin {
			httperr.Abort(c, apperr.ErrForbidden)
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}

func BearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// RequestID propagates X-Request-ID or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
