// Package schemes declares the repository contract for connection schemes.
package schemes

import (
	"context"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Repository defines operations for connection scheme persistence.
type Repository interface {
	// Create inserts a scheme and returns it with the generated UID.
	Create(ctx context.Context, scheme *models.ConnectionScheme) (*models.ConnectionScheme, error)

	// GetByUID looks up a scheme by UID.
	// Returns common.ErrorNotFound when absent.
	GetByUID(ctx context.Context, uid string) (*models.ConnectionScheme, error)

	// ListByClient returns all schemes owned by the client.
	ListByClient(ctx context.Context, clientUID string) ([]*models.ConnectionScheme, error)

	// ListByUsedBuffer returns every scheme whose used-buffer set contains
	// bufferUID. This is the routing engine's lookup.
	ListByUsedBuffer(ctx context.Context, bufferUID string) ([]*models.ConnectionScheme, error)

	// Update replaces the name, used buffers, and transitions of the
	// scheme identified by scheme.UID. Returns common.ErrorNotFound when
	// the row is absent.
	Update(ctx context.Context, scheme *models.ConnectionScheme) error

	// Delete removes a scheme by UID. Returns common.ErrorNotFound when
	// there was nothing to delete.
	Delete(ctx context.Context, uid string) error
}
