package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/observability"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

const refreshTracer = "refresh-token-repository"

// PostgresRefreshTokenRepository keeps the refresh hash in users.refresh_token_hashed.
type PostgresRefreshTokenRepository struct {
	db *sql.DB
}

func NewPostgresRefreshTokenRepository(db *sql.DB) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{db: db}
}

func (r *PostgresRefreshTokenRepository) exec(ctx context.Context, method, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("refresh token query failed", "method", method, "error", err)
		return 0, fmt.Errorf("failed to %s: %w", method, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (r *PostgresRefreshTokenRepository) Set(ctx context.Context, userID int64, tokenHash string) (err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, refreshTracer, "SetRefreshToken")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	n, err := r.exec(ctx, "set refresh token", `UPDATE users SET refresh_token_hashed = $1 WHERE id = $2`, tokenHash, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		err = pkgerrors.ErrUserNotFound
		return err
	}
	return nil
}

func (r *PostgresRefreshTokenRepository) Get(ctx context.Context, userID int64) (hash string, ok bool, err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, refreshTracer, "GetRefreshToken")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	var stored sql.NullString
	err = r.db.QueryRowContext(ctx, `SELECT refresh_token_hashed FROM users WHERE id = $1`, userID).Scan(&stored)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = nil
		return "", false, nil
	case err != nil:
		slog.Error("failed to get refresh token", "method", "Get", "user_id", userID, "error", err)
		err = fmt.Errorf("failed to get refresh token: %w", err)
		return "", false, err
	}
	if !stored.Valid || stored.String == "" {
		return "", false, nil
	}
	return stored.String, true, nil
}

// Swap is a single conditional UPDATE, so of two concurrent swaps from the
// same old hash only one matches a row.
func (r *PostgresRefreshTokenRepository) Swap(ctx context.Context, userID int64, oldHash, newHash string) (swapped bool, err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, refreshTracer, "SwapRefreshToken")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	n, err := r.exec(ctx, "swap refresh token",
		`UPDATE users SET refresh_token_hashed = $1 WHERE id = $2 AND refresh_token_hashed = $3`,
		newHash, userID, oldHash)
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("swapped", n == 1))
	return n == 1, nil
}

func (r *PostgresRefreshTokenRepository) Unset(ctx context.Context, userID int64) (err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, refreshTracer, "UnsetRefreshToken")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", userID))

	n, err := r.exec(ctx, "unset refresh token", `UPDATE users SET refresh_token_hashed = NULL WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		err = pkgerrors.ErrUserNotFound
		return err
	}
	return nil
}
