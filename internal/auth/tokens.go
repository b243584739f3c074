package auth

import (
	"errors"
	"fmt"
	"time"

	"marketgateway/config"
	"marketgateway/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "market-gateway"

// Claims binds a token to a user and a server-side session.
type Claims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access and refresh tokens. The two kinds use
// different secrets so one can never be presented as the other.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// AccessTTL is the lifetime of issued access tokens.
func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

func (m *TokenManager) IssueAccess(userID, sessionID string) (string, error) {
	return m.sign(m.accessSecret, m.accessTTL, userID, sessionID)
}

func (m *TokenManager) IssueRefresh(userID, sessionID string) (string, error) {
	return m.sign(m.refreshSecret, m.refreshTTL, userID, sessionID)
}

// ParseAccess verifies signature and expiry of an access token.
func (m *TokenManager) ParseAccess(token string) (*Claims, error) {
	return m.parse(m.accessSecret, token, "Invalid or expired access token")
}

// ParseRefresh verifies signature and expiry of a refresh token.
func (m *TokenManager) ParseRefresh(token string) (*Claims, error) {
	return m.parse(m.refreshSecret, token, "Invalid refresh token")
}

func (m *TokenManager) sign(secret []byte, ttl time.Duration, userID, sessionID string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) parse(secret []byte, token, message string) (*Claims, error) {
	if token == "" {
		return nil, apperr.InvalidToken(message)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidToken, err, "%s", message)
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, apperr.Wrap(apperr.KindInvalidToken, errors.New("missing claims"), "%s", message)
	}
	return &claims, nil
}
