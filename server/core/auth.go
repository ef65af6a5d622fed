package core

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "krazykarts-server"

var ErrInvalidToken = errors.New("invalid reconnect token")

// ReconnectClaims binds a token to the kart its holder drove.
type ReconnectClaims struct {
	VehicleID uint32 `json:"vid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks reconnect tokens with HS256.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenIssuer creates an issuer. An empty secret gets a random key, which
// only lets drivers reconnect to this server process.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token key: %w", err)
		}
	}
	return &TokenIssuer{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a token for vehicleID.
func (ti *TokenIssuer) Issue(vehicleID uint32) (string, error) {
	now := ti.now()
	claims := ReconnectClaims{
		VehicleID: vehicleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   fmt.Sprintf("kart-%d", vehicleID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.key)
}

// Verify returns the kart a token was issued for.
func (ti *TokenIssuer) Verify(tokenString string) (uint32, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ReconnectClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.key, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*ReconnectClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	return claims.VehicleID, nil
}
