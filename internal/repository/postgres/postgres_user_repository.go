package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/observability"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

const userTracer = "user-repository"

const userColumns = `id, username, password_hash, name, address, comment, user_type, refresh_token_hashed, created_at, updated_at`

var sortColumns = map[string]string{
	"id":       "id",
	"username": "username",
	"name":     "name",
	"address":  "address",
	"comment":  "comment",
	"userType": "user_type",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Name,
		&u.Address,
		&u.Comment,
		&u.Role,
		&u.RefreshTokenHashed,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == "23505"
}

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, userTracer, "CreateUser")
	defer func() { finish(err) }()

	if user == nil {
		err = pkgerrors.ErrNilUser
		slog.Error("failed to create user", "method", "Create", "error", err)
		return err
	}
	if user.Username == "" || user.PasswordHash == "" {
		err = fmt.Errorf("%w: username and password hash are required", pkgerrors.ErrValidation)
		slog.Error("invalid user", "method", "Create", "error", err)
		return err
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !user.Role.Valid() {
		err = fmt.Errorf("%w: unknown user type %q", pkgerrors.ErrValidation, user.Role)
		return err
	}
	span.SetAttributes(attribute.String("username", user.Username), attribute.String("user_type", string(user.Role)))

	query := `INSERT INTO users (username, password_hash, name, address, comment, user_type) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Name,
		user.Address,
		user.Comment,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = pkgerrors.ErrUsernameExists
			slog.Warn("username already taken", "method", "Create", "username", user.Username)
			return err
		}
		slog.Error("failed to create user", "method", "Create", "username", user.Username, "error", err)
		err = fmt.Errorf("failed to create user: %w", err)
		return err
	}

	slog.Info("user created", "method", "Create", "user_id", user.ID, "username", user.Username)
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (user *models.User, err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, userTracer, "GetUserByID")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", id))

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err = scanUser(r.db.QueryRowContext(ctx, query, id))
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get user by id", "method", "GetByID", "user_id", id, "error", err)
		err = fmt.Errorf("failed to get user by id: %w", err)
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (user *models.User, err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, userTracer, "GetUserByUsername")
	defer func() { finish(err) }()

	if username == "" {
		err = fmt.Errorf("%w: username cannot be empty", pkgerrors.ErrValidation)
		return nil, err
	}
	span.SetAttributes(attribute.String("username", username))

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	user, err = scanUser(r.db.QueryRowContext(ctx, query, username))
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to get user by username", "method", "GetByUsername", "error", err)
		err = fmt.Errorf("failed to get user by username: %w", err)
		return nil, err
	}
	return user, nil
}

// buildListQuery renders the filter as one parameterized statement. Filters
// are exact matches; results are ordered by id unless SortBy is set.
func buildListQuery(filter models.UserFilter) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	where := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.Username != nil {
		where("username", *filter.Username)
	}
	if filter.Name != nil {
		where("name", *filter.Name)
	}
	if filter.Address != nil {
		where("address", *filter.Address)
	}
	if filter.Comment != nil {
		where("comment", *filter.Comment)
	}
	if filter.UserType != nil {
		where("user_type", *filter.UserType)
	}

	orderBy := "id"
	if filter.SortBy != "" {
		column, ok := sortColumns[filter.SortBy]
		if !ok {
			return "", nil, fmt.Errorf("%w: cannot sort by %q", pkgerrors.ErrValidation, filter.SortBy)
		}
		orderBy = column
	}
	dir := "ASC"
	switch filter.SortDir {
	case "", models.SortAsc:
	case models.SortDesc:
		dir = "DESC"
	default:
		return "", nil, fmt.Errorf("%w: sort direction must be asc or desc", pkgerrors.ErrValidation)
	}

	limit, offset, ok := filter.Window()
	if !ok {
		return "", nil, fmt.Errorf("%w: page or limit out of range", pkgerrors.ErrValidation)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + userColumns + ` FROM users`)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY %s %s", orderBy, dir)
	if orderBy != "id" {
		b.WriteString(", id ASC")
	}
	args = append(args, limit, offset)
	fmt.Fprintf(&b, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return b.String(), args, nil
}

func (r *PostgresUserRepository) List(ctx context.Context, filter models.UserFilter) (users []models.User, err error) {
	ctx, _, finish := observability.StartRepositoryCall(ctx, userTracer, "ListUsers")
	defer func() { finish(err) }()

	query, args, err := buildListQuery(filter)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to list users", "method", "List", "error", err)
		err = fmt.Errorf("failed to list users: %w", err)
		return nil, err
	}
	defer rows.Close()

	users = make([]models.User, 0)
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan user: %w", scanErr)
			return nil, err
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("failed to iterate users: %w", err)
		return nil, err
	}
	return users, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, id int64, update models.UserUpdate) (user *models.User, err error) {
	if update.Empty() {
		return r.GetByID(ctx, id)
	}

	ctx, span, finish := observability.StartRepositoryCall(ctx, userTracer, "UpdateUser")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", id))

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Username != nil {
		set("username", *update.Username)
	}
	if update.PasswordHash != nil {
		set("password_hash", *update.PasswordHash)
	}
	if update.Name != nil {
		set("name", *update.Name)
	}
	if update.Address != nil {
		set("address", *update.Address)
	}
	if update.Comment != nil {
		set("comment", *update.Comment)
	}
	if update.Role != nil {
		set("user_type", *update.Role)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	user, err = scanUser(r.db.QueryRowContext(ctx, query, args...))
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserNotFound
		return nil, err
	case isUniqueViolation(err):
		err = pkgerrors.ErrUsernameExists
		return nil, err
	case err != nil:
		slog.Error("failed to update user", "method", "Update", "user_id", id, "error", err)
		err = fmt.Errorf("failed to update user: %w", err)
		return nil, err
	}

	slog.Info("user updated", "method", "Update", "user_id", id)
	return user, nil
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id int64) (user *models.User, err error) {
	ctx, span, finish := observability.StartRepositoryCall(ctx, userTracer, "DeleteUser")
	defer func() { finish(err) }()
	span.SetAttributes(attribute.Int64("user_id", id))

	query := `DELETE FROM users WHERE id = $1 RETURNING ` + userColumns
	user, err = scanUser(r.db.QueryRowContext(ctx, query, id))
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		err = pkgerrors.ErrUserNotFound
		return nil, err
	case err != nil:
		slog.Error("failed to delete user", "method", "Delete", "user_id", id, "error", err)
		err = fmt.Errorf("failed to delete user: %w", err)
		return nil, err
	}

	slog.Info("user deleted", "method", "Delete", "user_id", id)
	return user, nil
}

func (r *PostgresUserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
