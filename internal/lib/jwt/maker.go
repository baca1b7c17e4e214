// Package jwt issues and verifies the HS256 bearer tokens the API accepts.
// The identity provider signs tokens with the shared secret; Generate exists
// for operators and tests.
package jwt

import (
	"time"
)

// Maker issues and parses tokens.
type Maker interface {
	GenerateToken(userID, email, role string) (string, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// MakerImpl signs with a shared secret.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker creates a MakerImpl.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
