package ports

import (
	"time"

	"github.com/google/uuid"
)

// AuthClaims is the caller identity extracted from a bearer token.
type AuthClaims struct {
	UserID    uuid.UUID
	Email     string
	Role      string
	ExpiresAt time.Time
}

// TokenVerifier validates bearer tokens minted by the identity provider.
type TokenVerifier interface {
	Verify(token string) (AuthClaims, error)
}
