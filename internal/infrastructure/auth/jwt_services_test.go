package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/config"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessSecret:  "test-access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "test-refresh-secret",
		RefreshTTL:    7 * 24 * time.Hour,
		HashSecret:    "test-hash-secret",
	}
}

var testIdentity = models.Identity{UserID: 42, Username: "testuser1", Role: models.RoleUser}

func TestJWTService_IssueAndVerify(t *testing.T) {
	svc := NewJWTService(testJWTConfig())

	for _, kind := range []models.TokenKind{models.AccessToken, models.RefreshToken} {
		t.Run(string(kind), func(t *testing.T) {
			token, exp, err := svc.Issue(kind, testIdentity)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			claims, err := svc.Verify(kind, token)
			require.NoError(t, err)
			assert.Equal(t, "42", claims.Subject)
			assert.Equal(t, "testuser1", claims.Username)
			assert.Equal(t, models.RoleUser, claims.UserType)
			assert.Equal(t, kind, claims.Type)
			assert.NotEmpty(t, claims.Nonce)
			assert.NotEmpty(t, claims.ID)
			assert.WithinDuration(t, exp, claims.ExpiresAt.Time, time.Second)

			identity, err := claims.Identity()
			require.NoError(t, err)
			assert.Equal(t, testIdentity, *identity)
		})
	}
}

func TestJWTService_TTLPerContext(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := NewJWTService(testJWTConfig()).WithClock(func() time.Time { return now })

	_, accessExp, err := svc.Issue(models.AccessToken, testIdentity)
	require.NoError(t, err)
	_, refreshExp, err := svc.Issue(models.RefreshToken, testIdentity)
	require.NoError(t, err)

	assert.Equal(t, now.Add(15*time.Minute), accessExp)
	assert.Equal(t, now.Add(7*24*time.Hour), refreshExp)
}

func TestJWTService_SameInstantTokensDiffer(t *testing.T) {
	now := time.Now()
	svc := NewJWTService(testJWTConfig()).WithClock(func() time.Time { return now })

	first, _, err := svc.Issue(models.RefreshToken, testIdentity)
	require.NoError(t, err)
	second, _, err := svc.Issue(models.RefreshToken, testIdentity)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestJWTService_Expired(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	issuer := NewJWTService(testJWTConfig()).WithClock(func() time.Time { return issuedAt })
	token, _, err := issuer.Issue(models.AccessToken, testIdentity)
	require.NoError(t, err)

	verifier := NewJWTService(testJWTConfig())
	_, err = verifier.Verify(models.AccessToken, token)
	assert.ErrorIs(t, err, pkgerrors.ErrTokenExpired)
	assert.NotErrorIs(t, err, pkgerrors.ErrTokenInvalid)
}

func TestJWTService_CrossContextRejected(t *testing.T) {
	svc := NewJWTService(testJWTConfig())

	access, _, err := svc.Issue(models.AccessToken, testIdentity)
	require.NoError(t, err)
	refresh, _, err := svc.Issue(models.RefreshToken, testIdentity)
	require.NoError(t, err)

	_, err = svc.Verify(models.RefreshToken, access)
	assert.ErrorIs(t, err, pkgerrors.ErrTokenInvalid)

	_, err = svc.Verify(models.AccessToken, refresh)
	assert.ErrorIs(t, err, pkgerrors.ErrTokenInvalid)
}

func TestJWTService_TypeClaimChecked(t *testing.T) {
	// Same secret in both contexts: only the typ claim tells them apart.
	cfg := testJWTConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	svc := NewJWTService(cfg)

	refresh, _, err := svc.Issue(models.RefreshToken, testIdentity)
	require.NoError(t, err)

	_, err = svc.Verify(models.AccessToken, refresh)
	assert.ErrorIs(t, err, pkgerrors.ErrTokenInvalid)
}

func TestJWTService_Tampered(t *testing.T) {
	svc := NewJWTService(testJWTConfig())
	token, _, err := svc.Issue(models.AccessToken, testIdentity)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	forged := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Username: "testuser1",
		UserType: models.RoleAdmin,
		Type:     models.AccessToken,
	}
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SignedString([]byte("attacker-secret"))
	require.NoError(t, err)
	otherParts := strings.Split(other, ".")

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "empty", token: ""},
		{name: "payload swapped", token: parts[0] + "." + otherParts[1] + "." + parts[2]},
		{name: "signature stripped", token: parts[0] + "." + parts[1] + "."},
		{name: "foreign secret", token: other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(models.AccessToken, tt.token)
			assert.ErrorIs(t, err, pkgerrors.ErrTokenInvalid)
		})
	}
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserType: models.RoleUser,
		Type:     models.AccessToken,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-access-secret"))
	require.NoError(t, err)

	_, err = NewJWTService(testJWTConfig()).Verify(models.AccessToken, token)
	assert.ErrorIs(t, err, pkgerrors.ErrTokenInvalid)
}

func TestJWTService_MissingSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.AccessSecret = ""
	svc := NewJWTService(cfg)

	_, _, err := svc.Issue(models.AccessToken, testIdentity)
	assert.ErrorIs(t, err, pkgerrors.ErrConfig)

	_, err = svc.Verify(models.AccessToken, "whatever")
	assert.ErrorIs(t, err, pkgerrors.ErrConfig)

	_, _, err = svc.Issue(models.RefreshToken, testIdentity)
	assert.NoError(t, err)
}

func TestClaims_BadSubject(t *testing.T) {
	for _, sub := range []string{"", "abc", "0", "-3"} {
		c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
		_, err := c.UserID()
		assert.ErrorIs(t, err, pkgerrors.ErrTokenInvalid, sub)
	}
}
