// Package devices declares the repository contract for registered devices.
package devices

import (
	"context"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Repository defines operations for device persistence.
type Repository interface {
	// Create inserts a device and returns it with the generated UID.
	Create(ctx context.Context, device *models.Device) (*models.Device, error)

	// GetByUID looks up a device by UID.
	// Returns common.ErrorNotFound when absent.
	GetByUID(ctx context.Context, uid string) (*models.Device, error)

	// ListByClient returns all devices owned by the client.
	ListByClient(ctx context.Context, clientUID string) ([]*models.Device, error)

	// Delete removes a device by UID. Returns common.ErrorNotFound when
	// there was nothing to delete.
	Delete(ctx context.Context, uid string) error
}
