// Package clients declares the repository contract for client accounts.
package clients

import (
	"context"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Repository defines operations for client account persistence.
type Repository interface {
	// Create inserts a client and returns it with the generated UID.
	// Returns common.ErrorAlreadyExists when the email is taken.
	Create(ctx context.Context, client *models.Client) (*models.Client, error)

	// GetByEmail looks up a client by email.
	// Returns common.ErrorNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.Client, error)

	// GetByUID looks up a client by UID.
	// Returns common.ErrorNotFound when absent.
	GetByUID(ctx context.Context, uid string) (*models.Client, error)
}
