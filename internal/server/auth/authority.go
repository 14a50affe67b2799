package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/dbx"
	"github.com/buffermesh/buffermesh/internal/server/config"
	"github.com/buffermesh/buffermesh/internal/server/models"
	"github.com/buffermesh/buffermesh/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Authority is the token authority. It mints and validates all four token
// kinds and owns their persisted lifecycle.
//
// Access tokens are stateless and live only in their signature. Refresh
// tokens, device tokens, and device access tokens are persisted; their
// signed form must both verify and match a live row to be accepted.
type Authority struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	secret      []byte

	accessValidity       time.Duration
	refreshValidity      time.Duration
	deviceValidity       time.Duration
	deviceAccessValidity time.Duration

	// now is a clock seam for tests.
	now func() time.Time
}

// NewAuthority constructs an Authority using repositories and server config.
func NewAuthority(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *Authority {
	return &Authority{
		db:                   db,
		repomanager:          m,
		secret:               []byte(cfg.SecretKey),
		accessValidity:       cfg.AccessTokenValidityDuration,
		refreshValidity:      cfg.RefreshTokenValidityDuration,
		deviceValidity:       cfg.DeviceTokenValidityDuration,
		deviceAccessValidity: cfg.DeviceAccessTokenValidityDuration,
		now:                  time.Now,
	}
}

// IssueClientTokens mints an access/refresh pair for clientUID and persists
// the refresh token row.
func (a *Authority) IssueClientTokens(ctx context.Context, clientUID string) (*TokenPair, error) {
	now := a.now()

	accessToken, err := SignToken(clientUID, "", TypeAccess, a.secret, now, a.accessValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	uid := uuid.NewString()
	refreshToken, err := SignToken(clientUID, uid, TypeRefresh, a.secret, now, a.refreshValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	row := &models.RefreshToken{
		UID:       uid,
		ClientUID: clientUID,
		Signature: refreshToken,
		IssuedAt:  now.Truncate(time.Second),
		Expires:   now.Truncate(time.Second).Add(a.refreshValidity),
	}
	if err := a.repomanager.RefreshTokens(a.db).Add(ctx, row); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshClientTokens validates a refresh token, rotates the persisted row
// in place (same UID, new signature and expiry), and mints a new access
// token for the same client. Rotation runs inside one transaction so the
// row is never observed half-replaced.
func (a *Authority) RefreshClientTokens(ctx context.Context, oldRefreshToken string) (*TokenPair, error) {
	claims, err := ParseToken(oldRefreshToken, TypeRefresh, a.secret)
	if err != nil {
		return nil, err
	}

	row, err := a.repomanager.RefreshTokens(a.db).FindByUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	// A superseded token still parses; only the current signature may rotate.
	if row.Signature != oldRefreshToken {
		return nil, common.ErrTokenNotFound
	}

	now := a.now()
	var pair *TokenPair

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		refreshToken, err := SignToken(row.ClientUID, row.UID, TypeRefresh, a.secret, now, a.refreshValidity)
		if err != nil {
			return common.ErrorInternal
		}

		issued := now.Truncate(time.Second)
		if err := a.repomanager.RefreshTokens(tx).Replace(ctx, row.UID, refreshToken, issued, issued.Add(a.refreshValidity)); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenNotFound
			}
			return fmt.Errorf("error rotating refresh token: %w", err)
		}

		accessToken, err := SignToken(row.ClientUID, "", TypeAccess, a.secret, now, a.accessValidity)
		if err != nil {
			return common.ErrorInternal
		}

		pair = &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// ValidateAccessToken verifies a client access token and returns its
// subject UID. Purely signature-based; no lookup is performed.
func (a *Authority) ValidateAccessToken(ctx context.Context, token string) (string, error) {
	claims, err := ParseToken(token, TypeAccess, a.secret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// RevokeRefreshToken deletes the persisted row behind a refresh token,
// ending the client's session. The signature must still verify; a revoked
// or rotated-away token fails with common.ErrTokenNotFound.
func (a *Authority) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	claims, err := ParseToken(refreshToken, TypeRefresh, a.secret)
	if err != nil {
		return err
	}

	row, err := a.repomanager.RefreshTokens(a.db).FindByUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTokenNotFound
		}
		return fmt.Errorf("error searching refresh token: %w", err)
	}
	if row.Signature != refreshToken {
		return common.ErrTokenNotFound
	}

	if err := a.repomanager.RefreshTokens(a.db).Delete(ctx, claims.ID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrTokenNotFound
		}
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

// IssueDeviceToken mints and persists the long-lived token binding a
// device to its owner. A device can hold only one; a second issue attempt
// fails with common.ErrorAlreadyExists until the first is revoked.
func (a *Authority) IssueDeviceToken(ctx context.Context, deviceUID, clientUID string) (*models.DeviceToken, error) {
	now := a.now()
	uid := uuid.NewString()

	signature, err := SignToken(deviceUID, uid, TypeDeviceToken, a.secret, now, a.deviceValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	token := &models.DeviceToken{
		UID:       uid,
		DeviceUID: deviceUID,
		ClientUID: clientUID,
		Signature: signature,
		IssuedAt:  now.Truncate(time.Second),
		Expires:   now.Truncate(time.Second).Add(a.deviceValidity),
	}
	if err := a.repomanager.DeviceTokens(a.db).Add(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// RevokeDeviceToken destroys a device token and every access token derived
// from it, in one transaction.
func (a *Authority) RevokeDeviceToken(ctx context.Context, deviceTokenUID string) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.repomanager.DeviceAccessTokens(tx).DeleteByDeviceToken(ctx, deviceTokenUID); err != nil {
			return err
		}
		if err := a.repomanager.DeviceTokens(tx).Delete(ctx, deviceTokenUID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenNotFound
			}
			return err
		}
		return nil
	})
}

// ValidateDeviceToken verifies a device token's signature and confirms a
// live, unexpired row backs it.
func (a *Authority) ValidateDeviceToken(ctx context.Context, token string) (*models.DeviceToken, error) {
	claims, err := ParseToken(token, TypeDeviceToken, a.secret)
	if err != nil {
		return nil, err
	}

	row, err := a.repomanager.DeviceTokens(a.db).FindByUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error searching device token: %w", err)
	}
	if row.Signature != token {
		return nil, common.ErrTokenNotFound
	}
	if row.Expires.Before(a.now()) {
		return nil, common.ErrTokenExpired
	}
	return row, nil
}

// AuthorizeDevice exchanges a valid device token for a fresh device access
// token. While a previous access token for the same device token is still
// unexpired the exchange is rejected with common.ErrAccessTokenExists;
// that is admission control, not a race. The invariant is enforced by the
// repository's conditional insert.
func (a *Authority) AuthorizeDevice(ctx context.Context, deviceToken string) (*models.DeviceAccessToken, error) {
	parent, err := a.ValidateDeviceToken(ctx, deviceToken)
	if err != nil {
		return nil, err
	}
	return a.issueDeviceAccessToken(ctx, a.db, parent.UID, parent.DeviceUID)
}

// RefreshDeviceAccessToken rotates a device access token: the old token is
// revoked first and the new one issued second, inside one transaction, so
// there is never a window with two valid tokens.
func (a *Authority) RefreshDeviceAccessToken(ctx context.Context, oldToken string) (*models.DeviceAccessToken, error) {
	claims, err := ParseToken(oldToken, TypeDeviceAccessToken, a.secret)
	if err != nil {
		return nil, err
	}

	old, err := a.repomanager.DeviceAccessTokens(a.db).FindByUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error searching device access token: %w", err)
	}
	if old.Signature != oldToken {
		return nil, common.ErrTokenNotFound
	}

	var fresh *models.DeviceAccessToken
	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.repomanager.DeviceAccessTokens(tx).Delete(ctx, old.UID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenNotFound
			}
			return err
		}
		var issueErr error
		fresh, issueErr = a.issueDeviceAccessToken(ctx, tx, old.DeviceTokenUID, old.DeviceUID)
		return issueErr
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// ValidateDeviceAccessToken verifies a device access token's signature and
// confirms a live, unexpired row backs it. Returns the device UID.
func (a *Authority) ValidateDeviceAccessToken(ctx context.Context, token string) (string, error) {
	claims, err := ParseToken(token, TypeDeviceAccessToken, a.secret)
	if err != nil {
		return "", err
	}

	row, err := a.repomanager.DeviceAccessTokens(a.db).FindByUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrTokenNotFound
		}
		return "", fmt.Errorf("error searching device access token: %w", err)
	}
	if row.Signature != token {
		return "", common.ErrTokenNotFound
	}
	if row.Expires.Before(a.now()) {
		return "", common.ErrTokenExpired
	}
	return row.DeviceUID, nil
}

func (a *Authority) issueDeviceAccessToken(ctx context.Context, db dbx.DBTX, deviceTokenUID, deviceUID string) (*models.DeviceAccessToken, error) {
	now := a.now()
	uid := uuid.NewString()

	signature, err := SignToken(deviceUID, uid, TypeDeviceAccessToken, a.secret, now, a.deviceAccessValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	token := &models.DeviceAccessToken{
		UID:            uid,
		DeviceTokenUID: deviceTokenUID,
		DeviceUID:      deviceUID,
		Signature:      signature,
		IssuedAt:       now.Truncate(time.Second),
		Expires:        now.Truncate(time.Second).Add(a.deviceAccessValidity),
	}
	if err := a.repomanager.DeviceAccessTokens(db).AddIfNoneActive(ctx, token, now); err != nil {
		return nil, err
	}
	return token, nil
}
