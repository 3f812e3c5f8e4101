package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims are carried by both access and refresh tokens
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token with its id and expiry
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 tokens
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates a token issuer
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess signs a short-lived access token
func (i *TokenIssuer) IssueAccess(userID, email, role string) (IssuedToken, error) {
	return i.issue(userID, email, role, TokenTypeAccess, i.accessTTL)
}

// IssueRefresh signs a long-lived refresh token; its ID must be persisted to allow revocation
func (i *TokenIssuer) IssueRefresh(userID, email, role string) (IssuedToken, error) {
	return i.issue(userID, email, role, TokenTypeRefresh, i.refreshTTL)
}

func (i *TokenIssuer) issue(userID, email, role, tokenType string, ttl time.Duration) (IssuedToken, error) {
	now := i.now()
	expiresAt := now.Add(ttl)
	jti := NewID()

	claims := &Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return IssuedToken{Token: signed, ID: jti, ExpiresAt: expiresAt}, nil
}

// ParseAccess verifies an access token
func (i *TokenIssuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, TokenTypeAccess)
}

// ParseRefresh verifies a refresh token's signature and expiry
func (i *TokenIssuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, TokenTypeRefresh)
}

func (i *TokenIssuer) parse(tokenString, tokenType string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.TokenType != tokenType || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
