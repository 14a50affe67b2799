// Package devicetokens provides a PostgreSQL-backed repository for device
// tokens. The one-token-per-device rule is enforced in SQL, not by a
// read-then-write check.
package devicetokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

// Add inserts the token unless the device already has one. The conflict
// target is the unique index on device_uid; zero rows affected means the
// device token already exists.
func (r *PostgresRepository) Add(ctx context.Context, token *models.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (uid, device_uid, client_uid, signature, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (device_uid) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		token.UID, token.DeviceUID, token.ClientUID, token.Signature, token.IssuedAt, token.Expires)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) FindByUID(ctx context.Context, uid string) (*models.DeviceToken, error) {
	query := `
		SELECT uid, device_uid, client_uid, signature, issued_at, expires_at
		FROM device_tokens
		WHERE uid = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, uid))
}

func (r *PostgresRepository) FindByDevice(ctx context.Context, deviceUID string) (*models.DeviceToken, error) {
	query := `
		SELECT uid, device_uid, client_uid, signature, issued_at, expires_at
		FROM device_tokens
		WHERE device_uid = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, deviceUID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.DeviceToken, error) {
	token := &models.DeviceToken{}
	if err := row.Scan(
		&token.UID, &token.DeviceUID, &token.ClientUID, &token.Signature, &token.IssuedAt, &token.Expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, uid string) error {
	query := `
		DELETE FROM device_tokens
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
