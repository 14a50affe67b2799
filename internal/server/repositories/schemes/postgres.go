// Package schemes provides a PostgreSQL-backed repository for connection
// schemes. The used-buffer set and the transition table are stored as
// jsonb so the routing lookup can use containment on used_buffers.
package schemes

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Create(ctx context.Context, scheme *models.ConnectionScheme) (*models.ConnectionScheme, error) {
	usedBuffers, transitions, err := marshalTopology(scheme)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO connection_schemes (client_uid, name, used_buffers, transitions)
		VALUES ($1, $2, $3, $4)
		RETURNING uid
	`
	if err := r.db.QueryRowContext(ctx, query,
		scheme.ClientUID, scheme.Name, usedBuffers, transitions).Scan(&scheme.UID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scheme, nil
}

func (r *PostgresRepository) GetByUID(ctx context.Context, uid string) (*models.ConnectionScheme, error) {
	query := `
		SELECT uid, client_uid, name, used_buffers, transitions, created_at
		FROM connection_schemes
		WHERE uid = $1
	`
	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result, err := scanSchemes(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, common.ErrorNotFound
	}
	return result[0], nil
}

func (r *PostgresRepository) ListByClient(ctx context.Context, clientUID string) ([]*models.ConnectionScheme, error) {
	query := `
		SELECT uid, client_uid, name, used_buffers, transitions, created_at
		FROM connection_schemes
		WHERE client_uid = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, clientUID)
	if err != nil {
		return nil, fmt.Errorf("failed to select schemes: %w", err)
	}
	defer rows.Close()
	return scanSchemes(rows)
}

func (r *PostgresRepository) ListByUsedBuffer(ctx context.Context, bufferUID string) ([]*models.ConnectionScheme, error) {
	query := `
		SELECT uid, client_uid, name, used_buffers, transitions, created_at
		FROM connection_schemes
		WHERE used_buffers @> jsonb_build_array($1::text)
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, bufferUID)
	if err != nil {
		return nil, fmt.Errorf("failed to select schemes: %w", err)
	}
	defer rows.Close()
	return scanSchemes(rows)
}

func (r *PostgresRepository) Update(ctx context.Context, scheme *models.ConnectionScheme) error {
	usedBuffers, transitions, err := marshalTopology(scheme)
	if err != nil {
		return err
	}

	query := `
		UPDATE connection_schemes
		SET name = $2, used_buffers = $3, transitions = $4
		WHERE uid = $1
	`
	res, err := r.db.ExecContext(ctx, query, scheme.UID, scheme.Name, usedBuffers, transitions)
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

func (r *PostgresRepository) Delete(ctx context.Context, uid string) error {
	query := `
		DELETE FROM connection_schemes
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

func marshalTopology(scheme *models.ConnectionScheme) ([]byte, []byte, error) {
	usedBuffers, err := json.Marshal(scheme.UsedBuffers)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal used buffers: %w", err)
	}
	transitions, err := json.Marshal(scheme.Transitions)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal transitions: %w", err)
	}
	return usedBuffers, transitions, nil
}

func scanSchemes(rows *sql.Rows) ([]*models.ConnectionScheme, error) {
	var result []*models.ConnectionScheme
	for rows.Next() {
		var (
			item        models.ConnectionScheme
			usedBuffers []byte
			transitions []byte
		)
		if err := rows.Scan(&item.UID, &item.ClientUID, &item.Name, &usedBuffers, &transitions, &item.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(usedBuffers, &item.UsedBuffers); err != nil {
			return nil, fmt.Errorf("unmarshal used buffers: %w", err)
		}
		if err := json.Unmarshal(transitions, &item.Transitions); err != nil {
			return nil, fmt.Errorf("unmarshal transitions: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
