// Package deviceaccesstokens provides a PostgreSQL-backed repository for
// device access tokens.
package deviceaccesstokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/buffermesh/buffermesh/internal/common"
	"github.com/buffermesh/buffermesh/internal/dbx"
	"github.com/buffermesh/buffermesh/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// AddIfNoneActive performs the conditional insert that carries the
// single-active-token invariant. Zero rows affected means an unexpired
// token for the same device token was still standing.
func (r *PostgresRepository) AddIfNoneActive(ctx context.Context, token *models.DeviceAccessToken, now time.Time) error {
	query := `
		INSERT INTO device_access_tokens (uid, device_token_uid, device_uid, signature, issued_at, expires_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM device_access_tokens
			WHERE device_token_uid = $2 AND expires_at > $7
		)
	`
	res, err := r.db.ExecContext(ctx, query,
		token.UID, token.DeviceTokenUID, token.DeviceUID, token.Signature,
		token.IssuedAt, token.Expires, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrAccessTokenExists
	}
	return nil
}

func (r *PostgresRepository) FindByUID(ctx context.Context, uid string) (*models.DeviceAccessToken, error) {
	query := `
		SELECT uid, device_token_uid, device_uid, signature, issued_at, expires_at
		FROM device_access_tokens
		WHERE uid = $1
	`
	token := &models.DeviceAccessToken{}
	if err := r.db.QueryRowContext(ctx, query, uid).Scan(
		&token.UID, &token.DeviceTokenUID, &token.DeviceUID, &token.Signature,
		&token.IssuedAt, &token.Expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, uid string) error {
	query := `
		DELETE FROM device_access_tokens
		WHERE uid = $1
	`
	res, err := r.db.ExecContext(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteByDeviceToken(ctx context.Context, deviceTokenUID string) error {
	query := `
		DELETE FROM device_access_tokens
		WHERE device_token_uid = $1
	`
	if _, err := r.db.ExecContext(ctx, query, deviceTokenUID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
