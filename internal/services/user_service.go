package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	stderrors "errors"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/auth"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/kafka"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/repository"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type UserService interface {
	Create(ctx context.Context, actor *models.Identity, input models.CreateUserInput) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Update(ctx context.Context, actor *models.Identity, id int64, input models.UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, actor *models.Identity, id int64) (*models.User, error)
}

type userService struct {
	userRepo  repository.UserRepository
	passwords PasswordHasher
	events    kafka.EventPublisher
}

func NewUserService(userRepo repository.UserRepository, passwords PasswordHasher, events kafka.EventPublisher) *userService {
	if events == nil {
		events = kafka.NoopPublisher{}
	}
	return &userService{userRepo: userRepo, passwords: passwords, events: events}
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", pkgerrors.ErrValidation, msg)
}

func actorID(actor *models.Identity) int64 {
	if actor == nil {
		return 0
	}
	return actor.UserID
}

// passThrough reports whether err is a domain error the caller should see
// as is, rather than an internal failure.
func passThrough(err error) bool {
	return stderrors.Is(err, pkgerrors.ErrUserNotFound) ||
		stderrors.Is(err, pkgerrors.ErrUsernameExists) ||
		stderrors.Is(err, pkgerrors.ErrValidation) ||
		stderrors.Is(err, pkgerrors.ErrForbidden)
}

func wrapRepoError(err error) error {
	if passThrough(err) {
		return err
	}
	return fmt.Errorf("%w: %w", pkgerrors.ErrInternal, err)
}

func (s *userService) Create(ctx context.Context, actor *models.Identity, input models.CreateUserInput) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "CreateUser")
	defer span.End()

	username := strings.TrimSpace(input.Username)
	if username == "" {
		span.SetStatus(codes.Error, "empty username")
		return nil, validationError("username should not be empty")
	}
	if input.Password == "" {
		span.SetStatus(codes.Error, "empty password")
		return nil, validationError("password should not be empty")
	}

	role := models.RoleUser
	if input.UserType != nil {
		if !input.UserType.Valid() {
			return nil, validationError("userType must be one of USER, ADMIN")
		}
		role = *input.UserType
	}
	if err := auth.CanAssignRole(actor, &role); err != nil {
		span.SetStatus(codes.Error, "role escalation")
		slog.Warn("user creation denied", "actor_id", actorID(actor), "requested_user_type", role)
		return nil, err
	}

	hash, err := s.passwords.HashPassword(input.Password)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to hash password", "username", username, "error", err)
		return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		Name:         input.Name,
		Address:      input.Address,
		Comment:      input.Comment,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		return nil, wrapRepoError(err)
	}
	span.SetAttributes(attribute.Int64("user_id", user.ID))

	s.events.Publish(ctx, models.AuthEvent{
		EventType: models.EventUserCreated,
		UserID:    user.ID,
		ActorID:   actorID(actor),
		Username:  user.Username,
		UserType:  user.Role,
	})
	slog.Info("user created", "user_id", user.ID, "username", user.Username, "user_type", user.Role, "actor_id", actorID(actor))
	return user, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "GetUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", id))

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, wrapRepoError(err)
	}
	return user, nil
}

func validateFilter(filter models.UserFilter) error {
	if filter.SortBy != "" && !models.IsUserSortField(filter.SortBy) {
		return validationError("sortBy must be one of " + strings.Join(models.UserSortFields, ", "))
	}
	if filter.SortDir != "" && filter.SortDir != models.SortAsc && filter.SortDir != models.SortDesc {
		return validationError("sortDir must be asc or desc")
	}
	if filter.UserType != nil && !filter.UserType.Valid() {
		return validationError("userType must be one of USER, ADMIN")
	}
	if filter.Page < 0 || filter.Limit < 0 {
		return validationError("page and limit must be positive")
	}
	if _, _, ok := filter.Window(); !ok {
		return validationError(fmt.Sprintf("limit must not exceed %d and page must be in range", models.MaxListLimit))
	}
	return nil
}

func (s *userService) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "ListUsers")
	defer span.End()

	if err := validateFilter(filter); err != nil {
		span.SetStatus(codes.Error, "invalid filter")
		return nil, err
	}
	users, err := s.userRepo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, wrapRepoError(err)
	}
	span.SetAttributes(attribute.Int("count", len(users)))
	return users, nil
}

func (s *userService) Update(ctx context.Context, actor *models.Identity, id int64, input models.UpdateUserInput) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", id))

	if err := auth.CanAccessUser(actor, id); err != nil {
		return nil, err
	}
	if input.UserType != nil && !input.UserType.Valid() {
		return nil, validationError("userType must be one of USER, ADMIN")
	}
	if err := auth.CanAssignRole(actor, input.UserType); err != nil {
		span.SetStatus(codes.Error, "role escalation")
		slog.Warn("role change denied", "actor_id", actorID(actor), "user_id", id, "requested_user_type", *input.UserType)
		return nil, err
	}

	update := models.UserUpdate{
		Name:    input.Name,
		Address: input.Address,
		Comment: input.Comment,
		Role:    input.UserType,
	}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, validationError("username should not be empty")
		}
		update.Username = &username
	}
	if input.Password != nil {
		if *input.Password == "" {
			return nil, validationError("password should not be empty")
		}
		hash, err := s.passwords.HashPassword(*input.Password)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
		}
		update.PasswordHash = &hash
	}

	user, err := s.userRepo.Update(ctx, id, update)
	if err != nil {
		span.RecordError(err)
		return nil, wrapRepoError(err)
	}

	s.events.Publish(ctx, models.AuthEvent{
		EventType: models.EventUserUpdated,
		UserID:    user.ID,
		ActorID:   actorID(actor),
		Username:  user.Username,
		UserType:  user.Role,
	})
	slog.Info("user updated", "user_id", user.ID, "actor_id", actorID(actor))
	return user, nil
}

func (s *userService) Delete(ctx context.Context, actor *models.Identity, id int64) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", id))

	if err := auth.CanAccessUser(actor, id); err != nil {
		return nil, err
	}
	user, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, wrapRepoError(err)
	}

	s.events.Publish(ctx, models.AuthEvent{
		EventType: models.EventUserDeleted,
		UserID:    user.ID,
		ActorID:   actorID(actor),
		Username:  user.Username,
		UserType:  user.Role,
	})
	slog.Info("user deleted", "user_id", user.ID, "actor_id", actorID(actor))
	return user, nil
}
