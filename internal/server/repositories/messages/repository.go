// Package messages declares the repository contract for buffer messages.
package messages

import (
	"context"
	"time"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

// Repository defines operations for message persistence. Messages are
// immutable once stored; reads are ordered by creation time ascending with
// the UID as tiebreak.
type Repository interface {
	// Add stores a message. Returns common.ErrorAlreadyExists on a UID
	// collision.
	Add(ctx context.Context, message *models.Message) error

	// ListByBuffers returns a page of messages stored on any of the given
	// buffers. limit < 0 means no limit. An offset past the end yields an
	// empty slice.
	ListByBuffers(ctx context.Context, bufferUIDs []string, offset, limit int) ([]*models.Message, error)

	// DeleteByUIDs removes the given messages. Missing UIDs are ignored.
	DeleteByUIDs(ctx context.Context, uids []string) error

	// DeleteByBuffer removes every message stored on the buffer and
	// returns the number of rows removed.
	DeleteByBuffer(ctx context.Context, bufferUID string) (int64, error)

	// DeleteOlderThan removes every message created before cutoff and
	// returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
