package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/repository/postgres"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "username", "password_hash", "name", "address", "comment", "user_type", "refresh_token_hashed", "created_at", "updated_at"}

func strPtr(s string) *string { return &s }

func TestPostgresUserRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresUserRepository(db)
	ctx := context.Background()

	t.Run("NilUser", func(t *testing.T) {
		err := repo.Create(ctx, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrNilUser)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingFields", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "", PasswordHash: "hash"})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		err = repo.Create(ctx, &models.User{Username: "testuser", PasswordHash: ""})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UserAlreadyExists", func(t *testing.T) {
		user := &models.User{Username: "testuser", PasswordHash: "hash"}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WithArgs("testuser", "hash", nil, nil, nil, models.RoleUser).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, user)
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success", func(t *testing.T) {
		now := time.Now().UTC()
		user := &models.User{Username: "adminuser", PasswordHash: "hash", Name: strPtr("Admin"), Role: models.RoleAdmin}
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (username, password_hash, name, address, comment, user_type) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`)).
			WithArgs("adminuser", "hash", "Admin", nil, nil, models.RoleAdmin).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

		err := repo.Create(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, now, user.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
			WillReturnError(fmt.Errorf("database error"))

		err := repo.Create(ctx, &models.User{Username: "x", PasswordHash: "hash"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create user")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUserRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresUserRepository(db)
	ctx := context.Background()
	query := regexp.QuoteMeta(`FROM users WHERE id = $1`)

	t.Run("Success", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery(query).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(1), "testuser1", "hash", "Test", nil, nil, "USER", "abc", now, now))

		user, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
		assert.Equal(t, "testuser1", user.Username)
		assert.Equal(t, models.RoleUser, user.Role)
		require.NotNil(t, user.Name)
		assert.Equal(t, "Test", *user.Name)
		assert.Nil(t, user.Address)
		require.NotNil(t, user.RefreshTokenHashed)
		assert.Equal(t, "abc", *user.RefreshTokenHashed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UserNotFound", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(int64(2)).WillReturnError(sql.ErrNoRows)

		user, err := repo.GetByID(ctx, 2)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(int64(3)).WillReturnError(fmt.Errorf("database error"))

		user, err := repo.GetByID(ctx, 3)
		assert.Nil(t, user)
		assert.Contains(t, err.Error(), "failed to get user by id")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUserRepository_GetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresUserRepository(db)
	ctx := context.Background()
	query := regexp.QuoteMeta(`FROM users WHERE username = $1`)

	t.Run("Success", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery(query).
			WithArgs("adminuser").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(2), "adminuser", "hash", nil, nil, nil, "ADMIN", nil, now, now))

		user, err := repo.GetByUsername(ctx, "adminuser")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, user.Role)
		assert.Nil(t, user.RefreshTokenHashed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyUsername", func(t *testing.T) {
		user, err := repo.GetByUsername(ctx, "")
		assert.Nil(t, user)
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UserNotFound", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		user, err := repo.GetByUsername(ctx, "ghost")
		assert.Nil(t, user)
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUserRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresUserRepository(db)
	ctx := context.Background()

	t.Run("Defaults", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users ORDER BY id ASC LIMIT $1 OFFSET $2`)).
			WithArgs(models.DefaultListLimit, 0).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(1), "testuser1", "hash", nil, nil, nil, "USER", nil, now, now).
				AddRow(int64(2), "adminuser", "hash", nil, nil, nil, "ADMIN", nil, now, now))

		users, err := repo.List(ctx, models.UserFilter{})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "adminuser", users[1].Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("FiltersSortAndPage", func(t *testing.T) {
		admin := models.RoleAdmin
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE name = $1 AND user_type = $2 ORDER BY username DESC, id ASC LIMIT $3 OFFSET $4`)).
			WithArgs("Bob", models.RoleAdmin, 10, 20).
			WillReturnRows(sqlmock.NewRows(userColumns))

		users, err := repo.List(ctx, models.UserFilter{
			Name:     strPtr("Bob"),
			UserType: &admin,
			SortBy:   "username",
			SortDir:  models.SortDesc,
			Page:     3,
			Limit:    10,
		})
		require.NoError(t, err)
		assert.NotNil(t, users)
		assert.Empty(t, users)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SortByUserType", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY user_type ASC`)).
			WillReturnRows(sqlmock.NewRows(userColumns))

		_, err := repo.List(ctx, models.UserFilter{SortBy: "userType"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PageOutOfRange", func(t *testing.T) {
		_, err := repo.List(ctx, models.UserFilter{Page: math.MaxInt, Limit: 2})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LastAddressablePage", func(t *testing.T) {
		page := math.MaxInt/models.MaxListLimit + 1
		mock.ExpectQuery(regexp.QuoteMeta(`LIMIT $1 OFFSET $2`)).
			WithArgs(models.MaxListLimit, (page-1)*models.MaxListLimit).
			WillReturnRows(sqlmock.NewRows(userColumns))

		_, err := repo.List(ctx, models.UserFilter{Page: page, Limit: models.MaxListLimit})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownSortField", func(t *testing.T) {
		_, err := repo.List(ctx, models.UserFilter{SortBy: "password_hash"})
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUserRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		now := time.Now().UTC()
		role := models.RoleAdmin
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET comment = $1, user_type = $2, updated_at = NOW() WHERE id = $3 RETURNING`)).
			WithArgs("hello", models.RoleAdmin, int64(1)).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(1), "testuser1", "hash", nil, nil, "hello", "ADMIN", nil, now, now))

		user, err := repo.Update(ctx, 1, models.UserUpdate{Comment: strPtr("hello"), Role: &role})
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, user.Role)
		assert.Equal(t, "hello", *user.Comment)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyPatchReads", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(1), "testuser1", "hash", nil, nil, nil, "USER", nil, now, now))

		user, err := repo.Update(ctx, 1, models.UserUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "testuser1", user.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET`)).WillReturnError(sql.ErrNoRows)

		_, err := repo.Update(ctx, 9, models.UserUpdate{Name: strPtr("x")})
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET username = $1`)).
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := repo.Update(ctx, 1, models.UserUpdate{Username: strPtr("adminuser")})
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUserRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewPostgresUserRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1 RETURNING`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(1), "testuser1", "hash", nil, nil, nil, "USER", nil, now, now))

		user, err := repo.Delete(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "testuser1", user.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM users`)).WithArgs(int64(5)).WillReturnError(sql.ErrNoRows)

		_, err := repo.Delete(ctx, 5)
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS users`)).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, postgres.EnsureSchema(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
