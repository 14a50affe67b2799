// Package deviceaccesstokens declares the repository contract for
// short-lived device access tokens. At most one unexpired row may exist
// per device token; the invariant lives in the insert itself so that
// concurrent authorize calls cannot race past an application-level check.
package deviceaccesstokens

import (
	"context"
	"time"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Repository defines operations for the device access token lifecycle.
type Repository interface {
	// AddIfNoneActive inserts the token only if no unexpired token exists
	// for the same device token UID as of now. Returns
	// common.ErrAccessTokenExists when one does.
	AddIfNoneActive(ctx context.Context, token *models.DeviceAccessToken, now time.Time) error

	// FindByUID looks up a device access token by its UID.
	// Returns common.ErrorNotFound when absent.
	FindByUID(ctx context.Context, uid string) (*models.DeviceAccessToken, error)

	// Delete revokes a device access token by UID. Returns
	// common.ErrorNotFound when there was nothing to revoke.
	Delete(ctx context.Context, uid string) error

	// DeleteByDeviceToken removes all access tokens derived from the given
	// device token. Used when the parent device token is revoked; removing
	// zero rows is not an error.
	DeleteByDeviceToken(ctx context.Context, deviceTokenUID string) error
}
