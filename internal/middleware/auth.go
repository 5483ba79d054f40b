package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/luxora/storefront-api/internal/apperror"
	"github.com/luxora/storefront-api/internal/model"
)

const (
	sessionKey        = "session"
	AccessTokenCookie = "accessToken"
)

// Authenticator resolves an access token into a session.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.Session, error)
}

// Authenticate requires a valid access token from the Authorization header or
// the accessToken cookie.
func Authenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, apperror.Unauthorized("Access token is required"))
			return
		}
		session, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

// OptionalAuth attaches a session when a valid token is present and lets the
// request through anonymously otherwise.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if session, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(sessionKey, session)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after Authenticate.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFrom(c)
		if session == nil {
			abort(c, apperror.Unauthorized("Access token is required"))
			return
		}
		if !session.IsAdmin {
			abort(c, apperror.Forbidden("Admin access required"))
			return
		}
		c.Next()
	}
}

// SessionFrom returns the authenticated session or nil for anonymous requests.
func SessionFrom(c *gin.Context) *model.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*model.Session)
	return session
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return cookie
	}
	return ""
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
