// Package clients provides a PostgreSQL-backed repository for client
// accounts.
package clients

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

// Create inserts the client, letting the database assign the UID. The
// conflict target is the unique index on email.
func (r *PostgresRepository) Create(ctx context.Context, client *models.Client) (*models.Client, error) {
	query := `
		INSERT INTO clients (email, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING
		RETURNING uid
	`
	err := r.db.QueryRowContext(ctx, query, client.Email, client.PasswordHash).Scan(&client.UID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return client, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	query := `
		SELECT uid, email, password_hash, created_at
		FROM clients
		WHERE email = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByUID(ctx context.Context, uid string) (*models.Client, error) {
	query := `
		SELECT uid, email, password_hash, created_at
		FROM clients
		WHERE uid = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, uid))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Client, error) {
	client := &models.Client{}
	if err := row.Scan(&client.UID, &client.Email, &client.PasswordHash, &client.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return client, nil
}
