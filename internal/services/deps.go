package service

import (
	"context"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/auth"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
)

// PasswordHasher is satisfied by *auth.PasswordHasher.
type PasswordHasher interface {
	HashPassword(plain string) (string, error)
	VerifyPassword(plain, storedHash string) bool
	BurnCompare(plain string)
}

// TokenCodec is satisfied by *auth.JWTService.
type TokenCodec interface {
	Issue(kind models.TokenKind, identity models.Identity) (string, time.Time, error)
	Verify(kind models.TokenKind, token string) (*auth.Claims, error)
}

// RefreshStore is satisfied by *auth.RefreshTokenStore.
type RefreshStore interface {
	Save(ctx context.Context, userID int64, raw string) error
	Clear(ctx context.Context, userID int64) error
	Matches(ctx context.Context, userID int64, raw string) (bool, error)
	Rotate(ctx context.Context, userID int64, oldRaw, newRaw string) (bool, error)
}
