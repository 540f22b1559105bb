package auth

import "errors"

// Generic store/service failures, kept separate from policy denials.
var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrInvalidToken indicates an access token failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Denial codes surfaced to callers. These are stable wire-level identifiers;
// the HTTP adapter translates them into status codes.
const (
	CodeForbidden               = "FORBIDDEN"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeSessionNotFound         = "SESSION_NOT_FOUND"
	CodeSessionExpired          = "SESSION_EXPIRED"
	CodeSessionRevoked          = "SESSION_REVOKED"
	CodeInvalidRefreshToken     = "INVALID_REFRESH_TOKEN"
)

// Error is a typed denial. Every rejection in this package is one of these;
// nothing is denied silently and nothing is retried internally.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches by code so callers can use errors.Is against the sentinels below
// even for errors constructed with an extra message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrForbidden           = &Error{Code: CodeForbidden}
	ErrInvalidTransition   = &Error{Code: CodeInvalidStatusTransition}
	ErrSessionNotFound     = &Error{Code: CodeSessionNotFound}
	ErrSessionExpired      = &Error{Code: CodeSessionExpired}
	ErrSessionRevoked      = &Error{Code: CodeSessionRevoked}
	ErrInvalidRefreshToken = &Error{Code: CodeInvalidRefreshToken}
)

// Denied reports whether err is any policy/field denial (FORBIDDEN or
// FORBIDDEN_FIELD_*).
func Denied(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == CodeForbidden || len(e.Code) > len(fieldCodePrefix) && e.Code[:len(fieldCodePrefix)] == fieldCodePrefix
}

const fieldCodePrefix = "FORBIDDEN_FIELD_"
