package bridge

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"playgrid/internal/core/domain"
)

var (
	ErrInvalidToken = errors.New("invalid pairing token")
	ErrExpiredToken = errors.New("pairing token expired")
)

// PairingClaims binds a bridge token to one stream's rendering surface.
type PairingClaims struct {
	StreamID domain.StreamID `json:"stream_id"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates the short-lived pairing tokens a rendering
// surface presents when connecting to the bridge. Pairing prevents an
// arbitrary local page from injecting events for someone else's stream.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue mints a pairing token for one stream.
func (t *TokenIssuer) Issue(streamID domain.StreamID) (string, error) {
	claims := &PairingClaims{
		StreamID: streamID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses a pairing token and returns the stream it is bound to.
func (t *TokenIssuer) Validate(tokenString string) (domain.StreamID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PairingClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*PairingClaims)
	if !ok || !token.Valid || claims.StreamID == "" {
		return "", ErrInvalidToken
	}
	return claims.StreamID, nil
}
