// Package services contains server-side business logic: the account and
// session facade, device, buffer, and connection scheme management, and
// the message routing engine.
package services

import (
	"context"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// The interfaces below are the capabilities one service role consumes from
// another. Each has two implementations: the owning service itself (when
// both roles run in one process) and a bus-backed adapter in
// internal/server/remote (when they do not). Consuming code cannot tell
// them apart.

// TokenVerifier resolves a client access token to its subject UID.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

// BufferDirectory resolves buffers owned by the buffer service.
type BufferDirectory interface {
	GetBuffer(ctx context.Context, uid string) (*models.Buffer, error)
	BuffersByDevice(ctx context.Context, deviceUID string) ([]*models.Buffer, error)
}

// SchemeDirectory resolves connection schemes owned by the scheme service.
type SchemeDirectory interface {
	GetScheme(ctx context.Context, uid string) (*models.ConnectionScheme, error)
	SchemesUsingBuffer(ctx context.Context, bufferUID string) ([]*models.ConnectionScheme, error)
}

// DeviceDirectory resolves devices owned by the device service.
type DeviceDirectory interface {
	GetDevice(ctx context.Context, uid string) (*models.Device, error)
}
