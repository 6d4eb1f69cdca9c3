package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/repository"
)

// TokenHasher computes a keyed, deterministic hash of raw refresh tokens.
type TokenHasher struct {
	key []byte
}

func NewTokenHasher(secret string) *TokenHasher {
	return &TokenHasher{key: []byte(secret)}
}

func (h *TokenHasher) Hash(raw string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Equal compares a raw token against a stored hex hash in constant time.
func (h *TokenHasher) Equal(raw, storedHash string) bool {
	stored, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(raw))
	return hmac.Equal(mac.Sum(nil), stored)
}

// RefreshTokenStore persists only HMACs of refresh tokens, one per user.
type RefreshTokenStore struct {
	repo   repository.RefreshTokenRepository
	hasher *TokenHasher
}

func NewRefreshTokenStore(repo repository.RefreshTokenRepository, hasher *TokenHasher) *RefreshTokenStore {
	return &RefreshTokenStore{repo: repo, hasher: hasher}
}

func (s *RefreshTokenStore) Save(ctx context.Context, userID int64, raw string) error {
	if err := s.repo.Set(ctx, userID, s.hasher.Hash(raw)); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

func (s *RefreshTokenStore) Clear(ctx context.Context, userID int64) error {
	if err := s.repo.Unset(ctx, userID); err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}
	return nil
}

func (s *RefreshTokenStore) Matches(ctx context.Context, userID int64, raw string) (bool, error) {
	stored, ok, err := s.repo.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("loading refresh token: %w", err)
	}
	if !ok {
		return false, nil
	}
	return s.hasher.Equal(raw, stored), nil
}

// Rotate replaces oldRaw with newRaw atomically. It reports false when oldRaw
// is no longer the stored token, e.g. a concurrent refresh won the race.
func (s *RefreshTokenStore) Rotate(ctx context.Context, userID int64, oldRaw, newRaw string) (bool, error) {
	ok, err := s.repo.Swap(ctx, userID, s.hasher.Hash(oldRaw), s.hasher.Hash(newRaw))
	if err != nil {
		return false, fmt.Errorf("rotating refresh token: %w", err)
	}
	return ok, nil
}
