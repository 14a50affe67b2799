// Package devicetokens declares the repository contract for long-lived
// device tokens. A device holds at most one token row at a time.
package devicetokens

import (
	"context"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Repository defines operations for issuing, looking up, and revoking
// device tokens.
type Repository interface {
	// Add inserts a token row for a device. Returns
	// common.ErrorAlreadyExists when the device already has one.
	Add(ctx context.Context, token *models.DeviceToken) error

	// FindByUID looks up a device token by its UID.
	// Returns common.ErrorNotFound when absent.
	FindByUID(ctx context.Context, uid string) (*models.DeviceToken, error)

	// FindByDevice looks up the active token for a device.
	// Returns common.ErrorNotFound when the device has none.
	FindByDevice(ctx context.Context, deviceUID string) (*models.DeviceToken, error)

	// Delete revokes a device token by UID. Returns common.ErrorNotFound
	// when there was nothing to revoke.
	Delete(ctx context.Context, uid string) error
}
