package service

import "errors"

var (
	ErrUserAlreadyExists = errors.New("user already exists, please login")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrRoleMismatch      = errors.New("access denied, role does not match")
	ErrForbidden         = errors.New("forbidden: user does not have permission for this action")
	ErrInvalidRole       = errors.New("role must be one of: user, admin")
	ErrPasswordTooLong   = errors.New("password must be at most 72 bytes")

	ErrInvalidResetToken = errors.New("invalid or expired reset token")

	ErrBusNotFound   = errors.New("bus not found")
	ErrRouteNotFound = errors.New("route not found")
	// ErrRouteConflict means the route list changed between read and write, or
	// the route at the requested index is not the one the caller expected
	ErrRouteConflict = errors.New("route list was modified, reload and retry")
)
