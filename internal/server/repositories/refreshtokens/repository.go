// Package refreshtokens declares the server-side repository contract for
// managing client refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Repository defines operations for issuing, rotating, and revoking
// refresh tokens. The token UID is stable across rotations; only the
// signature and expiry change.
type Repository interface {
	// Add stores a freshly issued refresh token row.
	Add(ctx context.Context, token *models.RefreshToken) error

	// FindByUID looks up a refresh token by its stable UID.
	// Returns common.ErrorNotFound when the row is absent.
	FindByUID(ctx context.Context, uid string) (*models.RefreshToken, error)

	// Replace swaps the signature and validity window of the row identified
	// by uid. Returns common.ErrorNotFound when the row is absent.
	Replace(ctx context.Context, uid, signature string, issuedAt, expires time.Time) error

	// Delete removes a refresh token row by UID. Returns
	// common.ErrorNotFound when there was nothing to delete.
	Delete(ctx context.Context, uid string) error
}
