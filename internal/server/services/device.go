package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/server/auth"
	"github.com/buffermesh/buffermesh/internal/server/models"
	"github.com/buffermesh/buffermesh/internal/server/repositories/repomanager"
)

// DeviceService manages a client's registered devices and their tokens.
// Every operation taking a clientUID checks that the device belongs to
// that client and fails with common.ErrorForbidden when it does not.
type DeviceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	authority   *auth.Authority
}

func NewDeviceService(db *sql.DB, m repomanager.RepositoryManager, authority *auth.Authority) *DeviceService {
	return &DeviceService{db: db, repomanager: m, authority: authority}
}

// Create registers a new device for the client.
func (s *DeviceService) Create(ctx context.Context, clientUID, name string) (*models.Device, error) {
	device, err := s.repomanager.Devices(s.db).Create(ctx, &models.Device{ClientUID: clientUID, Name: name})
	if err != nil {
		return nil, fmt.Errorf("error creating device: %w", err)
	}
	return device, nil
}

// Get returns the device if it belongs to the client.
func (s *DeviceService) Get(ctx context.Context, clientUID, deviceUID string) (*models.Device, error) {
	return s.ownedDevice(ctx, clientUID, deviceUID)
}

// List returns all of the client's devices.
func (s *DeviceService) List(ctx context.Context, clientUID string) ([]*models.Device, error) {
	devices, err := s.repomanager.Devices(s.db).ListByClient(ctx, clientUID)
	if err != nil {
		return nil, fmt.Errorf("error listing devices: %w", err)
	}
	return devices, nil
}

// Delete removes the client's device. Any device token held by the device
// is revoked first so no orphaned credentials survive.
func (s *DeviceService) Delete(ctx context.Context, clientUID, deviceUID string) error {
	if _, err := s.ownedDevice(ctx, clientUID, deviceUID); err != nil {
		return err
	}

	token, err := s.repomanager.DeviceTokens(s.db).FindByDevice(ctx, deviceUID)
	switch {
	case err == nil:
		if err := s.authority.RevokeDeviceToken(ctx, token.UID); err != nil && !errors.Is(err, common.ErrTokenNotFound) {
			return err
		}
	case !errors.Is(err, common.ErrorNotFound):
		return fmt.Errorf("error searching device token: %w", err)
	}

	return s.repomanager.Devices(s.db).Delete(ctx, deviceUID)
}

// IssueToken mints the device's long-lived token. A device holds at most
// one; issuing a second fails with common.ErrorAlreadyExists until the
// first is revoked.
func (s *DeviceService) IssueToken(ctx context.Context, clientUID, deviceUID string) (*models.DeviceToken, error) {
	if _, err := s.ownedDevice(ctx, clientUID, deviceUID); err != nil {
		return nil, err
	}
	return s.authority.IssueDeviceToken(ctx, deviceUID, clientUID)
}

// RevokeToken destroys the device's token and every access token derived
// from it.
func (s *DeviceService) RevokeToken(ctx context.Context, clientUID, deviceUID string) error {
	if _, err := s.ownedDevice(ctx, clientUID, deviceUID); err != nil {
		return err
	}

	token, err := s.repomanager.DeviceTokens(s.db).FindByDevice(ctx, deviceUID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTokenNotFound
		}
		return fmt.Errorf("error searching device token: %w", err)
	}
	return s.authority.RevokeDeviceToken(ctx, token.UID)
}

// GetDevice implements DeviceDirectory for co-hosted deployments.
func (s *DeviceService) GetDevice(ctx context.Context, deviceUID string) (*models.Device, error) {
	return s.repomanager.Devices(s.db).GetByUID(ctx, deviceUID)
}

func (s *DeviceService) ownedDevice(ctx context.Context, clientUID, deviceUID string) (*models.Device, error) {
	device, err := s.repomanager.Devices(s.db).GetByUID(ctx, deviceUID)
	if err != nil {
		return nil, err
	}
	if device.ClientUID != clientUID {
		return nil, common.ErrorForbidden
	}
	return device, nil
}
