package auth

import (
	"context"
	"sync"

	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
)

// memoryRefreshRepo is an in-memory RefreshTokenRepository keyed by user id.
// Users present in the map with an empty hash exist without a token.
type memoryRefreshRepo struct {
	mu     sync.Mutex
	hashes map[int64]string
	err    error
}

func newMemoryRefreshRepo(userIDs ...int64) *memoryRefreshRepo {
	r := &memoryRefreshRepo{hashes: make(map[int64]string)}
	for _, id := range userIDs {
		r.hashes[id] = ""
	}
	return r
}

func (r *memoryRefreshRepo) Set(_ context.Context, userID int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.hashes[userID]; !ok {
		return pkgerrors.ErrUserNotFound
	}
	r.hashes[userID] = hash
	return nil
}

func (r *memoryRefreshRepo) Get(_ context.Context, userID int64) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", false, r.err
	}
	hash := r.hashes[userID]
	return hash, hash != "", nil
}

func (r *memoryRefreshRepo) Swap(_ context.Context, userID int64, oldHash, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if cur, ok := r.hashes[userID]; !ok || cur == "" || cur != oldHash {
		return false, nil
	}
	r.hashes[userID] = newHash
	return true, nil
}

func (r *memoryRefreshRepo) Unset(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.hashes[userID]; !ok {
		return pkgerrors.ErrUserNotFound
	}
	r.hashes[userID] = ""
	return nil
}
