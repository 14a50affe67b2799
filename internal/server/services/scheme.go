package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/server/models"
	"github.com/buffermesh/buffermesh/internal/server/repositories/repomanager"
)

// SchemeService manages a client's connection schemes. A scheme's
// transitions may only reference buffers listed in its used-buffer set;
// violations fail with common.ErrorIncorrectTransitions before anything is
// written.
type SchemeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	buffers     BufferDirectory
}

func NewSchemeService(db *sql.DB, m repomanager.RepositoryManager, buffers BufferDirectory) *SchemeService {
	return &SchemeService{db: db, repomanager: m, buffers: buffers}
}

// Create registers a new connection scheme for the client.
func (s *SchemeService) Create(ctx context.Context, clientUID, name string, usedBuffers []string, transitions map[string][]string) (*models.ConnectionScheme, error) {
	scheme := &models.ConnectionScheme{
		ClientUID:   clientUID,
		Name:        name,
		UsedBuffers: usedBuffers,
		Transitions: transitions,
	}
	if err := s.validateTopology(ctx, clientUID, scheme); err != nil {
		return nil, err
	}

	created, err := s.repomanager.Schemes(s.db).Create(ctx, scheme)
	if err != nil {
		return nil, fmt.Errorf("error creating scheme: %w", err)
	}
	return created, nil
}

// Get returns the scheme if it belongs to the client.
func (s *SchemeService) Get(ctx context.Context, clientUID, schemeUID string) (*models.ConnectionScheme, error) {
	return s.ownedScheme(ctx, clientUID, schemeUID)
}

// List returns all of the client's schemes.
func (s *SchemeService) List(ctx context.Context, clientUID string) ([]*models.ConnectionScheme, error) {
	schemes, err := s.repomanager.Schemes(s.db).ListByClient(ctx, clientUID)
	if err != nil {
		return nil, fmt.Errorf("error listing schemes: %w", err)
	}
	return schemes, nil
}

// Update replaces the client's scheme name and topology.
func (s *SchemeService) Update(ctx context.Context, clientUID, schemeUID, name string, usedBuffers []string, transitions map[string][]string) (*models.ConnectionScheme, error) {
	existing, err := s.ownedScheme(ctx, clientUID, schemeUID)
	if err != nil {
		return nil, err
	}

	existing.Name = name
	existing.UsedBuffers = usedBuffers
	existing.Transitions = transitions
	if err := s.validateTopology(ctx, clientUID, existing); err != nil {
		return nil, err
	}

	if err := s.repomanager.Schemes(s.db).Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("error updating scheme: %w", err)
	}
	return existing, nil
}

// Delete removes the client's scheme.
func (s *SchemeService) Delete(ctx context.Context, clientUID, schemeUID string) error {
	if _, err := s.ownedScheme(ctx, clientUID, schemeUID); err != nil {
		return err
	}
	return s.repomanager.Schemes(s.db).Delete(ctx, schemeUID)
}

// GetScheme implements SchemeDirectory for co-hosted deployments.
func (s *SchemeService) GetScheme(ctx context.Context, schemeUID string) (*models.ConnectionScheme, error) {
	return s.repomanager.Schemes(s.db).GetByUID(ctx, schemeUID)
}

// SchemesUsingBuffer implements SchemeDirectory for co-hosted deployments.
func (s *SchemeService) SchemesUsingBuffer(ctx context.Context, bufferUID string) ([]*models.ConnectionScheme, error) {
	return s.repomanager.Schemes(s.db).ListByUsedBuffer(ctx, bufferUID)
}

// validateTopology checks that every transition endpoint is a member of
// the used-buffer set and that every used buffer exists and belongs to the
// client.
func (s *SchemeService) validateTopology(ctx context.Context, clientUID string, scheme *models.ConnectionScheme) error {
	for source, destinations := range scheme.Transitions {
		if !scheme.UsesBuffer(source) {
			return common.ErrorIncorrectTransitions
		}
		for _, destination := range destinations {
			if !scheme.UsesBuffer(destination) {
				return common.ErrorIncorrectTransitions
			}
		}
	}

	for _, bufferUID := range scheme.UsedBuffers {
		buffer, err := s.buffers.GetBuffer(ctx, bufferUID)
		if err != nil {
			return err
		}
		if buffer.ClientUID != clientUID {
			return common.ErrorForbidden
		}
	}
	return nil
}

func (s *SchemeService) ownedScheme(ctx context.Context, clientUID, schemeUID string) (*models.ConnectionScheme, error) {
	scheme, err := s.repomanager.Schemes(s.db).GetByUID(ctx, schemeUID)
	if err != nil {
		return nil, err
	}
	if scheme.ClientUID != clientUID {
		return nil, common.ErrorForbidden
	}
	return scheme, nil
}
