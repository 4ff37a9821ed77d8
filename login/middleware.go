package login

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CookieName holds the session token for the server-rendered pages.
const CookieName = "lt_session"

const identityKey = "login_identity"

// Identity is the authenticated caller of a request.
type Identity struct {
	ID     int    `json:"id"`
	Email  string `json:"email"`
	Token  string `json:"-"`
	Claims Claims `json:"-"`
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// RequestToken prefers the bearer header and falls back to the session cookie.
func RequestToken(c *gin.Context) string {
	if t := BearerToken(c); t != "" {
		return t
	}
	if t, err := c.Cookie(CookieName); err == nil {
		return t
	}
	return ""
}

// Identify resolves a raw token into an Identity.
func (s *Signer) Identify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	claims, err := s.Parse(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: claims.UserID, Email: claims.Email, Token: token, Claims: claims}, nil
}

// SetIdentity attaches id to the request context.
func SetIdentity(c *gin.Context, id Identity) { c.Set(identityKey, id) }

// CurrentUser returns the identity attached by RequirePage or RequireAPI.
func CurrentUser(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// RequirePage redirects anonymous visitors to the login page.
func RequirePage(s *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.Identify(c.Request.Context(), RequestToken(c))
		if err != nil {
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
			return
		}
		SetIdentity(c, id)
		c.Next()
	}
}

// RequireAPI answers 401 JSON to unauthenticated API calls.
func RequireAPI(s *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.Identify(c.Request.Context(), RequestToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not logged in"})
			return
		}
		SetIdentity(c, id)
		c.Next()
	}
}
