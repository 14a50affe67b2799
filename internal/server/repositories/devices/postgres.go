// Package devices provides a PostgreSQL-backed repository for registered
// devices.
package devices

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

func (r *PostgresRepository) Create(ctx context.Context, device *models.Device) (*models.Device, error) {
	query := `
		INSERT INTO devices (client_uid, name)
		VALUES ($1, $2)
		RETURNING uid
	`
	if err := r.db.QueryRowContext(ctx, query, device.ClientUID, device.Name).Scan(&device.UID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return device, nil
}

func (r *PostgresRepository) GetByUID(ctx context.Context, uid string) (*models.Device, error) {
	query := `
		SELECT uid, client_uid, name, created_at
		FROM devices
		WHERE uid = $1
	`
	device := &models.Device{}
	if err := r.db.QueryRowContext(ctx, query, uid).Scan(
		&device.UID, &device.ClientUID, &device.Name, &device.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return device, nil
}

func (r *PostgresRepository) ListByClient(ctx context.Context, clientUID string) ([]*models.Device, error) {
	query := `
		SELECT uid, client_uid, name, created_at
		FROM devices
		WHERE client_uid = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, clientUID)
	if err != nil {
		return nil, fmt.Errorf("failed to select devices: %w", err)
	}
	defer rows.Close()

	var result []*models.Device
	for rows.Next() {
		var item models.Device
		if err := rows.Scan(&item.UID, &item.ClientUID, &item.Name, &item.CreatedAt); err != nil {
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
		DELETE FROM devices
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
