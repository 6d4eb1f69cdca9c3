package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/config"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/auth"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.AuthEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event models.AuthEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType
	}
	return out
}

type fixture struct {
	users     *memory.UserRepository
	refresh   *auth.RefreshTokenStore
	tokens    *auth.JWTService
	passwords *auth.PasswordHasher
	events    *recordingPublisher
	auth      *authService
	user      *userService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	passwords, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	users := memory.NewUserRepository()
	store := auth.NewRefreshTokenStore(memory.NewRefreshTokenRepository(users), auth.NewTokenHasher("hash-secret"))
	tokens := auth.NewJWTService(config.JWTConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Hour,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    7 * 24 * time.Hour,
		HashSecret:    "hash-secret",
	})
	events := &recordingPublisher{}

	return &fixture{
		users:     users,
		refresh:   store,
		tokens:    tokens,
		passwords: passwords,
		events:    events,
		auth:      NewAuthService(users, passwords, tokens, store, events),
		user:      NewUserService(users, passwords, events),
	}
}

func (f *fixture) seedUser(t *testing.T, username, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := f.passwords.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Username: username, PasswordHash: hash, Role: role}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}
