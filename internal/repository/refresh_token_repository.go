package repository

import "context"

// RefreshTokenRepository holds the single refresh-token hash slot per user.
// Implementations must make Swap atomic with respect to concurrent callers.
type RefreshTokenRepository interface {
	// Set overwrites the slot. Returns ErrUserNotFound for an unknown user.
	Set(ctx context.Context, userID int64, tokenHash string) error
	// Get returns the stored hash and whether one is present.
	Get(ctx context.Context, userID int64) (string, bool, error)
	// Swap replaces oldHash with newHash only if oldHash is what is stored.
	Swap(ctx context.Context, userID int64, oldHash, newHash string) (bool, error)
	// Unset empties the slot.
	Unset(ctx context.Context, userID int64) error
}
