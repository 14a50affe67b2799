package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/server/auth"
	"github.com/buffermesh/buffermesh/internal/server/config"
)

func newDeviceService(t *testing.T) (*DeviceService, *fakeRepoManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		SecretKey:                         "k",
		DeviceTokenValidityDuration:       time.Hour,
		DeviceAccessTokenValidityDuration: 10 * time.Minute,
	}
	rm := newFakeRepoManager()
	authority := auth.NewAuthority(db, rm, cfg)
	return NewDeviceService(db, rm, authority), rm, mock
}

func TestDeviceLifecycle(t *testing.T) {
	svc, _, _ := newDeviceService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, "client-1", "sensor")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if device.UID == "" {
		t.Fatalf("expected generated UID")
	}

	if _, err := svc.Get(ctx, "client-2", device.UID); !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("foreign get: got %v", err)
	}

	listed, err := svc.List(ctx, "client-1")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed %d devices, want 1", len(listed))
	}
}

func TestDeviceTokenIssueAndRevoke(t *testing.T) {
	svc, rm, mock := newDeviceService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, "client-1", "sensor")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	token, err := svc.IssueToken(ctx, "client-1", device.UID)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if token.DeviceUID != device.UID || token.ClientUID != "client-1" {
		t.Fatalf("token bound to %s/%s", token.DeviceUID, token.ClientUID)
	}

	// A device holds one token at a time.
	if _, err := svc.IssueToken(ctx, "client-1", device.UID); !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("second issue: got %v", err)
	}

	// Revocation runs in a transaction and clears the row.
	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := svc.RevokeToken(ctx, "client-1", device.UID); err != nil {
		t.Fatalf("RevokeToken error: %v", err)
	}
	if _, err := rm.deviceTokens.FindByDevice(ctx, device.UID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("token row survived revoke: %v", err)
	}

	if err := svc.RevokeToken(ctx, "client-1", device.UID); !errors.Is(err, common.ErrTokenNotFound) {
		t.Fatalf("double revoke: got %v", err)
	}
}

func TestDeviceTokenOwnership(t *testing.T) {
	svc, _, _ := newDeviceService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, "client-1", "sensor")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.IssueToken(ctx, "client-2", device.UID); !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("foreign issue: got %v", err)
	}
	if err := svc.RevokeToken(ctx, "client-2", device.UID); !errors.Is(err, common.ErrorForbidden) {
		t.Fatalf("foreign revoke: got %v", err)
	}
}

func TestDeviceDeleteRevokesToken(t *testing.T) {
	svc, rm, mock := newDeviceService(t)
	ctx := context.Background()

	device, err := svc.Create(ctx, "client-1", "sensor")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.IssueToken(ctx, "client-1", device.UID); err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	if err := svc.Delete(ctx, "client-1", device.UID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	if _, err := svc.Get(ctx, "client-1", device.UID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("deleted device still readable: %v", err)
	}
	if _, err := rm.deviceTokens.FindByDevice(ctx, device.UID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("device token survived device deletion")
	}
}
