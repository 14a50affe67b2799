// Package refreshtokens provides a PostgreSQL-backed repository for the
// client refresh tokens used in the authentication flow.
package refreshtokens

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

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (uid, client_uid, signature, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query,
		token.UID, token.ClientUID, token.Signature, token.IssuedAt, token.Expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByUID(ctx context.Context, uid string) (*models.RefreshToken, error) {
	query := `
		SELECT uid, client_uid, signature, issued_at, expires_at
		FROM refresh_tokens
		WHERE uid = $1
	`
	token := &models.RefreshToken{}
	if err := r.db.QueryRowContext(ctx, query, uid).Scan(
		&token.UID, &token.ClientUID, &token.Signature, &token.IssuedAt, &token.Expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) Replace(ctx context.Context, uid, signature string, issuedAt, expires time.Time) error {
	query := `
		UPDATE refresh_tokens
		SET signature = $2, issued_at = $3, expires_at = $4
		WHERE uid = $1
	`
	res, err := r.db.ExecContext(ctx, query, uid, signature, issuedAt, expires)
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
		DELETE FROM refresh_tokens
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
