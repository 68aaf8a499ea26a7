// Package common contains shared constants and sentinel errors used across
// the authentication service.
package common

// TokenType is the scheme returned to clients alongside issued tokens.
const TokenType = "Bearer"

// Error codes surfaced to callers in ErrorResponse.Code.
const (
	CodeSignupFailed       = "signup_failed"
	CodeAccountLocked      = "account_locked"
	CodeEmailNotVerified   = "email_not_verified"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidToken       = "invalid_token"
	CodeValidation         = "validation_error"
	CodeInternal           = "internal_error"
)
