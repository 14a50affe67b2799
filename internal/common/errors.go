// Package common defines shared constants and sentinel errors used across
// the buffermesh services. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Token lifecycle errors.
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenNotFound     = errors.New("token not found")
	ErrAccessTokenExists = errors.New("active device access token already exists")

	// Bus call errors.
	ErrCallTimeout  = errors.New("remote call timed out")
	ErrTransport    = errors.New("transport publish failed")
	ErrTypeMismatch = errors.New("response type mismatch")

	// Validation errors.
	ErrorIncorrectTransitions = errors.New("transition references buffer outside used buffers")
	ErrorInvalidContentType   = errors.New("unknown message content type")
)
