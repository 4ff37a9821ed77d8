package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrRevokedToken = errors.New("token revoked")
)

// Claims is the payload of a session token. The registered ID carries the
// jti used for revocation.
type Claims struct {
	UserID int    `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Expiry returns the expiry as a time.
func (c Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Signer issues and verifies HS256 session tokens shared by the web pages
// (cookie) and the browser extension (bearer header).
type Signer struct {
	secret  []byte
	ttl     time.Duration
	revoked Revoker
	now     func() time.Time
}

func NewSigner(secret string, ttl time.Duration, revoked Revoker) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, revoked: revoked, now: time.Now}
}

// Sign returns a fresh token for the user.
func (s *Signer) Sign(userID int, email string) (string, Claims, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Parse validates signature, expiry and revocation.
func (s *Signer) Parse(ctx context.Context, token string) (Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if c.UserID == 0 || c.ID == "" {
		return Claims{}, ErrInvalidToken
	}
	revoked, err := s.revoked.IsRevoked(ctx, c.ID)
	if err != nil {
		return Claims{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Claims{}, ErrRevokedToken
	}
	return c, nil
}

// Revoke invalidates token until its natural expiry.
func (s *Signer) Revoke(ctx context.Context, token string) error {
	c, err := s.Parse(ctx, token)
	if err != nil {
		// already unusable
		return nil
	}
	return s.revoked.Revoke(ctx, c.ID, c.Expiry())
}
