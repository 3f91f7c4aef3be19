package auth

import (
	"errors"

	"github.com/hongminglow/kinder-admin/internal/permission"
)

var (
	// ErrInvalidCredentials covers unknown email, soft-deleted account,
	// missing password hash and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid means the token is malformed, badly signed or carries an unusable payload.
	ErrTokenInvalid = errors.New("confirmation token is invalid")
	// ErrTokenExpired means the token is older than the confirmation lifetime.
	ErrTokenExpired = errors.New("confirmation token has expired")
	// ErrTokenUserMismatch means the token was issued for another user.
	ErrTokenUserMismatch = errors.New("confirmation token belongs to another user")
	// ErrAuthenticationRequired is returned when an anonymous principal calls
	// an operation that needs a signed-in user.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInvalidInput wraps registration validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPermissionDenied is shared with the permission package.
	ErrPermissionDenied = permission.ErrPermissionDenied
)
