package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameExists      = errors.New("username already exists")
	ErrNilUser             = errors.New("user is nil")
	ErrInvalidCredentials  = errors.New("wrong login / password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("access denied")
	ErrNotOwner            = fmt.Errorf("%w: you do not have permission to access this resource", ErrForbidden)
	ErrRoleEscalation      = fmt.Errorf("%w: only admins can set user type to ADMIN", ErrForbidden)
	ErrTokenExpired        = errors.New("token has expired")
	ErrTokenInvalid        = errors.New("invalid token")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConfig              = errors.New("configuration error")
	ErrInternal            = errors.New("internal server error")
)
