package redis

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/observability"
	redisclient "github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/redis"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "redis-refresh-token-repository"

// UserLookup confirms that a user exists. Redis holds no user rows, so the
// slot writes ask the primary store.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// RefreshTokenRepository stores the per-user refresh hash under
// user:<id>:refresh and lets it expire with the refresh token itself.
type RefreshTokenRepository struct {
	client redisclient.RedisClient
	users  UserLookup
	ttl    time.Duration
}

func NewRefreshTokenRepository(client redisclient.RedisClient, users UserLookup, ttl time.Duration) *RefreshTokenRepository {
	return &RefreshTokenRepository{client: client, users: users, ttl: ttl}
}

func refreshKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":refresh"
}

func (r *RefreshTokenRepository) Set(ctx context.Context, userID int64, tokenHash string) (err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, tracerName, "SetRefreshToken")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	if _, err = r.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err = r.client.Set(ctx, refreshKey(userID), tokenHash, r.ttl); err != nil {
		slog.Error("failed to store refresh token", "method", "Set", "user_id", userID, "error", err)
		err = fmt.Errorf("failed to store refresh token: %w", err)
		return err
	}
	return nil
}

func (r *RefreshTokenRepository) Get(ctx context.Context, userID int64) (hash string, ok bool, err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, tracerName, "GetRefreshToken")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	hash, err = r.client.Get(ctx, refreshKey(userID))
	switch {
	case stderrors.Is(err, redisclient.ErrKeyNotFound):
		err = nil
		return "", false, nil
	case err != nil:
		slog.Error("failed to load refresh token", "method", "Get", "user_id", userID, "error", err)
		err = fmt.Errorf("failed to load refresh token: %w", err)
		return "", false, err
	}
	return hash, hash != "", nil
}

func (r *RefreshTokenRepository) Swap(ctx context.Context, userID int64, oldHash, newHash string) (swapped bool, err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, tracerName, "SwapRefreshToken")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	swapped, err = r.client.CompareAndSwap(ctx, refreshKey(userID), oldHash, newHash, r.ttl)
	if err != nil {
		slog.Error("failed to swap refresh token", "method", "Swap", "user_id", userID, "error", err)
		err = fmt.Errorf("failed to swap refresh token: %w", err)
		return false, err
	}
	return swapped, nil
}

func (r *RefreshTokenRepository) Unset(ctx context.Context, userID int64) (err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, tracerName, "UnsetRefreshToken")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	if _, err = r.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err = r.client.Del(ctx, refreshKey(userID)); err != nil {
		slog.Error("failed to delete refresh token", "method", "Unset", "user_id", userID, "error", err)
		err = fmt.Errorf("failed to delete refresh token: %w", err)
		return err
	}
	return nil
}
