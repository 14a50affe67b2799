package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/dbx"
	"github.com/buffermesh/buffermesh/internal/server/models"
	"github.com/buffermesh/buffermesh/internal/server/repositories/repomanager"
)

// BufferService manages a client's logical buffers. Operations taking a
// clientUID are ownership-checked.
type BufferService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewBufferService(db *sql.DB, m repomanager.RepositoryManager) *BufferService {
	return &BufferService{db: db, repomanager: m}
}

// Create registers a new buffer for the client. A non-empty deviceUID
// attaches the buffer to one of the client's devices.
func (s *BufferService) Create(ctx context.Context, clientUID, name, deviceUID string) (*models.Buffer, error) {
	if deviceUID != "" {
		device, err := s.repomanager.Devices(s.db).GetByUID(ctx, deviceUID)
		if err != nil {
			return nil, err
		}
		if device.ClientUID != clientUID {
			return nil, common.ErrorForbidden
		}
	}

	buffer, err := s.repomanager.Buffers(s.db).Create(ctx, &models.Buffer{
		ClientUID: clientUID,
		DeviceUID: deviceUID,
		Name:      name,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating buffer: %w", err)
	}
	return buffer, nil
}

// Get returns the buffer if it belongs to the client.
func (s *BufferService) Get(ctx context.Context, clientUID, bufferUID string) (*models.Buffer, error) {
	return s.ownedBuffer(ctx, clientUID, bufferUID)
}

// List returns all of the client's buffers.
func (s *BufferService) List(ctx context.Context, clientUID string) ([]*models.Buffer, error) {
	buffers, err := s.repomanager.Buffers(s.db).ListByClient(ctx, clientUID)
	if err != nil {
		return nil, fmt.Errorf("error listing buffers: %w", err)
	}
	return buffers, nil
}

// Delete removes the client's buffer together with every message stored on
// it, in one transaction.
func (s *BufferService) Delete(ctx context.Context, clientUID, bufferUID string) error {
	if _, err := s.ownedBuffer(ctx, clientUID, bufferUID); err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Messages(tx).DeleteByBuffer(ctx, bufferUID); err != nil {
			return fmt.Errorf("error purging buffer messages: %w", err)
		}
		return s.repomanager.Buffers(tx).Delete(ctx, bufferUID)
	})
}

// GetBuffer implements BufferDirectory for co-hosted deployments.
func (s *BufferService) GetBuffer(ctx context.Context, bufferUID string) (*models.Buffer, error) {
	return s.repomanager.Buffers(s.db).GetByUID(ctx, bufferUID)
}

// BuffersByDevice implements BufferDirectory for co-hosted deployments.
func (s *BufferService) BuffersByDevice(ctx context.Context, deviceUID string) ([]*models.Buffer, error) {
	return s.repomanager.Buffers(s.db).ListByDevice(ctx, deviceUID)
}

func (s *BufferService) ownedBuffer(ctx context.Context, clientUID, bufferUID string) (*models.Buffer, error) {
	buffer, err := s.repomanager.Buffers(s.db).GetByUID(ctx, bufferUID)
	if err != nil {
		return nil, err
	}
	if buffer.ClientUID != clientUID {
		return nil, common.ErrorForbidden
	}
	return buffer, nil
}
