package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chat-backend/internal/errs"
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the JWT payload for both token types.
type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair bundles the credentials returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

// NewTokenManager builds a manager around the operator-supplied secret.
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// IssuePair mints an access and refresh token for the user.
func (m *TokenManager) IssuePair(userID uuid.UUID) (TokenPair, error) {
	access, err := m.issue(userID, TokenTypeAccess, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.issue(userID, TokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.accessTTL.Seconds()),
	}, nil
}

func (m *TokenManager) issue(userID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// VerifyAccess validates an access token and returns the subject user id.
func (m *TokenManager) VerifyAccess(token string) (uuid.UUID, error) {
	return m.verify(token, TokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns the subject user id.
func (m *TokenManager) VerifyRefresh(token string) (uuid.UUID, error) {
	return m.verify(token, TokenTypeRefresh)
}

func (m *TokenManager) verify(token, wantType string) (uuid.UUID, error) {
	claims := &Claims{}
	parsed, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, errs.Unauthenticated(errs.CodeTokenExpired, "token expired")
		}
		return uuid.Nil, errs.Wrap(errs.KindAuthentication, errs.CodeInvalidToken, "invalid token", err)
	}
	if !parsed.Valid || claims.TokenType != wantType || claims.Subject == "" {
		return uuid.Nil, errs.Unauthenticated(errs.CodeInvalidToken, "invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errs.Unauthenticated(errs.CodeInvalidToken, "invalid token")
	}
	return userID, nil
}
