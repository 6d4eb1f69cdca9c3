package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                   BIGSERIAL PRIMARY KEY,
	username             TEXT NOT NULL UNIQUE,
	password_hash        TEXT NOT NULL,
	name                 TEXT,
	address              TEXT,
	comment              TEXT,
	user_type            TEXT NOT NULL DEFAULT 'USER' CHECK (user_type IN ('USER', 'ADMIN')),
	refresh_token_hashed TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the users table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	slog.Info("database schema ready")
	return nil
}
