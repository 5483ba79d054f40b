package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/luxora/storefront-api/internal/config"
	"github.com/luxora/storefront-api/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenClaims is the decoded content of an access or refresh token.
type TokenClaims struct {
	UserID    uuid.UUID
	Email     string
	IsAdmin   bool
	TokenID   string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 access and refresh tokens. The two kinds
// use different secrets so one can never stand in for the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		now:           time.Now,
	}
}

func (t *TokenIssuer) AccessExpiry() time.Duration { return t.accessExpiry }

func (t *TokenIssuer) RefreshExpiry() time.Duration { return t.refreshExpiry }

func (t *TokenIssuer) IssueAccess(user *model.User) (string, error) {
	return t.sign(user, t.accessSecret, t.accessExpiry)
}

func (t *TokenIssuer) IssueRefresh(user *model.User) (string, error) {
	return t.sign(user, t.refreshSecret, t.refreshExpiry)
}

func (t *TokenIssuer) ParseAccess(token string) (*TokenClaims, error) {
	return t.parse(token, t.accessSecret)
}

func (t *TokenIssuer) ParseRefresh(token string) (*TokenClaims, error) {
	return t.parse(token, t.refreshSecret)
}

func (t *TokenIssuer) sign(user *model.User, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"sub":     user.ID.String(),
		"email":   user.Email,
		"isAdmin": user.IsAdmin,
		"jti":     uuid.NewString(),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(raw string, secret []byte) (*TokenClaims, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	isAdmin, _ := claims["isAdmin"].(bool)
	jti, _ := claims["jti"].(string)
	return &TokenClaims{
		UserID:    userID,
		Email:     email,
		IsAdmin:   isAdmin,
		TokenID:   jti,
		ExpiresAt: exp.Time,
	}, nil
}
