// Package buffers provides a PostgreSQL-backed repository for logical
// buffers.
package buffers

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

func (r *PostgresRepository) Create(ctx context.Context, buffer *models.Buffer) (*models.Buffer, error) {
	query := `
		INSERT INTO buffers (client_uid, device_uid, name)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING uid
	`
	if err := r.db.QueryRowContext(ctx, query,
		buffer.ClientUID, buffer.DeviceUID, buffer.Name).Scan(&buffer.UID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return buffer, nil
}

func (r *PostgresRepository) GetByUID(ctx context.Context, uid string) (*models.Buffer, error) {
	query := `
		SELECT uid, client_uid, COALESCE(device_uid, ''), name, created_at
		FROM buffers
		WHERE uid = $1
	`
	buffer := &models.Buffer{}
	if err := r.db.QueryRowContext(ctx, query, uid).Scan(
		&buffer.UID, &buffer.ClientUID, &buffer.DeviceUID, &buffer.Name, &buffer.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return buffer, nil
}

func (r *PostgresRepository) ListByClient(ctx context.Context, clientUID string) ([]*models.Buffer, error) {
	query := `
		SELECT uid, client_uid, COALESCE(device_uid, ''), name, created_at
		FROM buffers
		WHERE client_uid = $1
		ORDER BY created_at
	`
	return r.list(ctx, query, clientUID)
}

func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceUID string) ([]*models.Buffer, error) {
	query := `
		SELECT uid, client_uid, COALESCE(device_uid, ''), name, created_at
		FROM buffers
		WHERE device_uid = $1
		ORDER BY created_at
	`
	return r.list(ctx, query, deviceUID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]*models.Buffer, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to select buffers: %w", err)
	}
	defer rows.Close()

	var result []*models.Buffer
	for rows.Next() {
		var item models.Buffer
		if err := rows.Scan(&item.UID, &item.ClientUID, &item.DeviceUID, &item.Name, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, uid string) error {
	query := `
		DELETE FROM buffers
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
