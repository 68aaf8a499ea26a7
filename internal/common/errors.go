// Package common defines shared constants and sentinel errors used across
// the layers of the authentication service. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"strings"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")
	ErrValidation = errors.New("validation error")

	// Authentication outcomes raised by the orchestrator.
	ErrDuplicateIdentity  = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrEmailNotVerified   = errors.New("email not verified")

	// Token errors. Malformed, expired and forged tokens all collapse into
	// ErrInvalidToken at the service boundary.
	ErrInvalidToken   = errors.New("invalid token")
	ErrMalformedToken = errors.New("malformed token")
)

// ErrorResponse is the structured {code, message} pair returned to callers.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToErrorResponse maps an error produced by the service layer onto the
// public error taxonomy. Invalid credentials and invalid tokens always carry
// a uniform message so that callers cannot distinguish the underlying cause.
func ToErrorResponse(err error) ErrorResponse {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return ErrorResponse{Code: CodeInvalidCredentials, Message: "Invalid email or password"}
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMalformedToken):
		return ErrorResponse{Code: CodeInvalidToken, Message: "Invalid refresh token"}
	case errors.Is(err, ErrAccountLocked):
		return ErrorResponse{Code: CodeAccountLocked, Message: detail(err, ErrAccountLocked)}
	case errors.Is(err, ErrEmailNotVerified):
		return ErrorResponse{Code: CodeEmailNotVerified, Message: detail(err, ErrEmailNotVerified)}
	case errors.Is(err, ErrDuplicateIdentity):
		return ErrorResponse{Code: CodeSignupFailed, Message: detail(err, ErrDuplicateIdentity)}
	case errors.Is(err, ErrValidation):
		return ErrorResponse{Code: CodeValidation, Message: detail(err, ErrValidation)}
	default:
		return ErrorResponse{Code: CodeInternal, Message: "Internal server error"}
	}
}

// detail strips the sentinel prefix added by fmt.Errorf("%w: ...") and
// returns the remaining human-readable text, or the sentinel text itself.
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return sentinel.Error()
}
