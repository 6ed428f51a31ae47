package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, wrongly signed, or expired.
	ErrInvalidToken = errors.New("invalid token")
)

// BearerClaims holds JWT claims for the bearer token. The same token string is
// the session row key, so claims stay minimal; the full identity snapshot lives
// on the session row.
type BearerClaims struct {
	jwt.RegisteredClaims
	UserID int    `json:"id"`
	Role   string `json:"role"`
}

// TokenProvider issues and verifies bearer tokens signed with HS256.
// The signature makes a token independently checkable at the channel boundary;
// revocability comes from the session store, not from the claims.
type TokenProvider struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secret.
// ttl is the token (and session) lifetime.
func NewTokenProvider(secret []byte, ttl time.Duration) *TokenProvider {
	return &TokenProvider{secret: secret, ttl: ttl}
}

// Issue signs a bearer token for the given user id and role.
// Returns the token string and its expiration time.
func (p *TokenProvider) Issue(userID int, role string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// The token string is the session primary key; jti keeps two
			// logins for one identity within the same second distinct.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
		Role:   role,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses and validates the token (signature, exp) and returns its
// user id and role. Any failure is reported as ErrInvalidToken.
func (p *TokenProvider) Verify(tokenString string) (userID int, role string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &BearerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return 0, "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*BearerClaims)
	if !ok || !token.Valid {
		return 0, "", ErrInvalidToken
	}
	return claims.UserID, claims.Role, nil
}
