package bus

import (
	"errors"
	"fmt"

	"github.com/buffermesh/buffermesh/internal/common"
)

// Stable error codes carried inside KindError envelopes. Both sides of
// every call must agree on these values; they are part of the wire
// contract, not an implementation detail.
const (
	CodeNotFound          = "not_found"
	CodeAlreadyExists     = "already_exists"
	CodeForbidden         = "forbidden"
	CodeUnauthorized      = "unauthorized"
	CodeTokenInvalid      = "token_invalid"
	CodeTokenExpired      = "token_expired"
	CodeTokenNotFound     = "token_not_found"
	CodeAccessTokenExists = "access_token_exists"
	CodeUnknownCommand    = "unknown_command"
	CodeInternal          = "internal"
)

// CodeForError maps a service error to its stable wire code.
func CodeForError(err error) string {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return CodeNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, common.ErrorForbidden):
		return CodeForbidden
	case errors.Is(err, common.ErrorUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, common.ErrInvalidToken):
		return CodeTokenInvalid
	case errors.Is(err, common.ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, common.ErrTokenNotFound):
		return CodeTokenNotFound
	case errors.Is(err, common.ErrAccessTokenExists):
		return CodeAccessTokenExists
	default:
		return CodeInternal
	}
}

// ErrorFromCode restores a service sentinel from its wire code so callers
// can keep matching with errors.Is across process boundaries.
func ErrorFromCode(code, message string) error {
	switch code {
	case CodeNotFound:
		return common.ErrorNotFound
	case CodeAlreadyExists:
		return common.ErrorAlreadyExists
	case CodeForbidden:
		return common.ErrorForbidden
	case CodeUnauthorized:
		return common.ErrorUnauthorized
	case CodeTokenInvalid:
		return common.ErrInvalidToken
	case CodeTokenExpired:
		return common.ErrTokenExpired
	case CodeTokenNotFound:
		return common.ErrTokenNotFound
	case CodeAccessTokenExists:
		return common.ErrAccessTokenExists
	default:
		return fmt.Errorf("remote error %s: %s", code, message)
	}
}
