package service

import (
	"context"
	"fmt"
	"log/slog"

	stderrors "errors"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/kafka"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/observability"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/repository"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type AuthService interface {
	Login(ctx context.Context, username, password string) (*models.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error)
	Logout(ctx context.Context, userID int64) (*models.LogoutResult, error)
}

type authService struct {
	userRepo  repository.UserRepository
	passwords PasswordHasher
	tokens    TokenCodec
	refresh   RefreshStore
	events    kafka.EventPublisher
}

func NewAuthService(
	userRepo repository.UserRepository,
	passwords PasswordHasher,
	tokens TokenCodec,
	refresh RefreshStore,
	events kafka.EventPublisher,
) *authService {
	if events == nil {
		events = kafka.NoopPublisher{}
	}
	return &authService{
		userRepo:  userRepo,
		passwords: passwords,
		tokens:    tokens,
		refresh:   refresh,
		events:    events,
	}
}

func recordOutcome(span trace.Span, operation, outcome string) {
	observability.AuthOperations.WithLabelValues(operation, outcome).Inc()
	span.SetAttributes(attribute.String("outcome", outcome))
	if outcome != "success" {
		span.SetStatus(codes.Error, outcome)
	}
}

// issuePair signs a fresh access and refresh token for user.
func (s *authService) issuePair(user *models.User) (*models.AuthResult, error) {
	identity := models.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}

	access, accessExp, err := s.tokens.Issue(models.AccessToken, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to issue access token: %w", pkgerrors.ErrInternal, err)
	}
	refresh, refreshExp, err := s.tokens.Issue(models.RefreshToken, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to issue refresh token: %w", pkgerrors.ErrInternal, err)
	}
	return &models.AuthResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		User:             user.Summary(),
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*models.AuthResult, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	if username == "" {
		s.passwords.BurnCompare(password)
		recordOutcome(span, "login", "empty_username")
		return nil, pkgerrors.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			s.passwords.BurnCompare(password)
			recordOutcome(span, "login", "unknown_user")
			slog.Warn("login failed", "reason", "unknown user")
			return nil, pkgerrors.ErrInvalidCredentials
		}
		span.RecordError(err)
		recordOutcome(span, "login", "error")
		slog.Error("failed to load user for login", "error", err)
		return nil, fmt.Errorf("%w: failed to load user: %w", pkgerrors.ErrInternal, err)
	}
	span.SetAttributes(attribute.Int64("user_id", user.ID))

	if !s.passwords.VerifyPassword(password, user.PasswordHash) {
		recordOutcome(span, "login", "bad_password")
		slog.Warn("login failed", "user_id", user.ID, "reason", "wrong password")
		return nil, pkgerrors.ErrInvalidCredentials
	}

	result, err := s.issuePair(user)
	if err != nil {
		span.RecordError(err)
		recordOutcome(span, "login", "error")
		slog.Error("failed to issue tokens", "user_id", user.ID, "error", err)
		return nil, err
	}

	if err := s.refresh.Save(ctx, user.ID, result.RefreshToken); err != nil {
		span.RecordError(err)
		recordOutcome(span, "login", "error")
		slog.Error("failed to store refresh token", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInternal, err)
	}

	recordOutcome(span, "login", "success")
	s.events.Publish(ctx, models.AuthEvent{
		EventType: models.EventUserLoggedIn,
		UserID:    user.ID,
		ActorID:   user.ID,
		Username:  user.Username,
		UserType:  user.Role,
	})
	slog.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return result, nil
}

// rejectRefresh is the common exit for every refresh failure a client can
// cause. The reason only reaches logs, metrics and the audit stream.
func (s *authService) rejectRefresh(ctx context.Context, span trace.Span, userID int64, reason string) error {
	recordOutcome(span, "refresh", reason)
	slog.Warn("refresh rejected", "user_id", userID, "reason", reason)
	s.events.Publish(ctx, models.AuthEvent{
		EventType: models.EventRefreshRejected,
		UserID:    userID,
		Reason:    reason,
	})
	return pkgerrors.ErrInvalidRefreshToken
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Refresh")
	defer span.End()

	claims, err := s.tokens.Verify(models.RefreshToken, refreshToken)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrConfig) {
			span.RecordError(err)
			recordOutcome(span, "refresh", "error")
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInternal, err)
		}
		reason := "invalid_token"
		if stderrors.Is(err, pkgerrors.ErrTokenExpired) {
			reason = "expired_token"
		}
		return nil, s.rejectRefresh(ctx, span, 0, reason)
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, s.rejectRefresh(ctx, span, 0, "invalid_subject")
	}
	span.SetAttributes(attribute.Int64("user_id", userID))

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			return nil, s.rejectRefresh(ctx, span, userID, "unknown_user")
		}
		span.RecordError(err)
		recordOutcome(span, "refresh", "error")
		slog.Error("failed to load user for refresh", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: failed to load user: %w", pkgerrors.ErrInternal, err)
	}

	matches, err := s.refresh.Matches(ctx, user.ID, refreshToken)
	if err != nil {
		span.RecordError(err)
		recordOutcome(span, "refresh", "error")
		slog.Error("failed to check refresh token", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInternal, err)
	}
	if !matches {
		return nil, s.rejectRefresh(ctx, span, user.ID, "token_mismatch")
	}

	// The new pair carries the role as stored now, not as it was at login.
	result, err := s.issuePair(user)
	if err != nil {
		span.RecordError(err)
		recordOutcome(span, "refresh", "error")
		slog.Error("failed to issue tokens", "user_id", user.ID, "error", err)
		return nil, err
	}

	rotated, err := s.refresh.Rotate(ctx, user.ID, refreshToken, result.RefreshToken)
	if err != nil {
		span.RecordError(err)
		recordOutcome(span, "refresh", "error")
		slog.Error("failed to rotate refresh token", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInternal, err)
	}
	if !rotated {
		return nil, s.rejectRefresh(ctx, span, user.ID, "token_reused")
	}

	recordOutcome(span, "refresh", "success")
	s.events.Publish(ctx, models.AuthEvent{
		EventType: models.EventTokenRefreshed,
		UserID:    user.ID,
		ActorID:   user.ID,
		Username:  user.Username,
		UserType:  user.Role,
	})
	slog.Info("tokens refreshed", "user_id", user.ID)
	return result, nil
}

func (s *authService) Logout(ctx context.Context, userID int64) (*models.LogoutResult, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Logout")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", userID))

	if err := s.refresh.Clear(ctx, userID); err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			recordOutcome(span, "logout", "unknown_user")
			return nil, pkgerrors.ErrUserNotFound
		}
		span.RecordError(err)
		recordOutcome(span, "logout", "error")
		slog.Error("failed to clear refresh token", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInternal, err)
	}

	recordOutcome(span, "logout", "success")
	s.events.Publish(ctx, models.AuthEvent{
		EventType: models.EventUserLoggedOut,
		UserID:    userID,
		ActorID:   userID,
	})
	slog.Info("user logged out", "user_id", userID)
	return &models.LogoutResult{Message: fmt.Sprintf("Logout successful for userId=%d", userID)}, nil
}
