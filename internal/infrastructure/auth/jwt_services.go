package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/config"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/models"
	pkgerrors "github.com/bonjourjoel/lesechos-jabenhaim-backend/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload shared by access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Username string           `json:"username"`
	UserType models.Role      `json:"userType"`
	Nonce    string           `json:"nonce"`
	Type     models.TokenKind `json:"typ"`
}

func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", pkgerrors.ErrTokenInvalid, c.Subject)
	}
	return id, nil
}

func (c *Claims) Identity() (*models.Identity, error) {
	id, err := c.UserID()
	if err != nil {
		return nil, err
	}
	return &models.Identity{UserID: id, Username: c.Username, Role: c.UserType}, nil
}

type signingContext struct {
	secret []byte
	ttl    time.Duration
}

// JWTService signs and verifies tokens in two independent contexts.
type JWTService struct {
	contexts map[models.TokenKind]signingContext
	now      func() time.Time
}

func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		contexts: map[models.TokenKind]signingContext{
			models.AccessToken:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			models.RefreshToken: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		now: time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	s.now = now
	return s
}

func (s *JWTService) context(kind models.TokenKind) (signingContext, error) {
	sc, ok := s.contexts[kind]
	if !ok {
		return signingContext{}, fmt.Errorf("%w: unknown token kind %q", pkgerrors.ErrConfig, kind)
	}
	if len(sc.secret) == 0 {
		return signingContext{}, fmt.Errorf("%w: %s token secret is not set", pkgerrors.ErrConfig, kind)
	}
	return sc, nil
}

// Issue signs a new token of the given kind for the identity.
func (s *JWTService) Issue(kind models.TokenKind, identity models.Identity) (string, time.Time, error) {
	sc, err := s.context(kind)
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	exp := now.Add(sc.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Username: identity.Username,
		UserType: identity.Role,
		Nonce:    uuid.NewString(),
		Type:     kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(sc.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing %s token: %w", kind, err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm, expiry and kind.
func (s *JWTService) Verify(kind models.TokenKind, tokenString string) (*Claims, error) {
	sc, err := s.context(kind)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return sc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, pkgerrors.ErrTokenInvalid
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", pkgerrors.ErrTokenInvalid, kind, claims.Type)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	if !claims.UserType.Valid() {
		return nil, fmt.Errorf("%w: bad user type %q", pkgerrors.ErrTokenInvalid, claims.UserType)
	}
	return claims, nil
}
