// Package buffers declares the repository contract for logical buffers.
package buffers

import (
	"context"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Repository defines operations for buffer persistence.
type Repository interface {
	// Create inserts a buffer and returns it with the generated UID.
	Create(ctx context.Context, buffer *models.Buffer) (*models.Buffer, error)

	// GetByUID looks up a buffer by UID.
	// Returns common.ErrorNotFound when absent.
	GetByUID(ctx context.Context, uid string) (*models.Buffer, error)

	// ListByClient returns all buffers owned by the client.
	ListByClient(ctx context.Context, clientUID string) ([]*models.Buffer, error)

	// ListByDevice returns all buffers attached to the device.
	ListByDevice(ctx context.Context, deviceUID string) ([]*models.Buffer, error)

	// Delete removes a buffer by UID. Returns common.ErrorNotFound when
	// there was nothing to delete.
	Delete(ctx context.Context, uid string) error
}
