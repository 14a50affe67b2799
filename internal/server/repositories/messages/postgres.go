// Package messages provides a PostgreSQL-backed repository for buffer
// messages.
package messages

import (
	"context"
	"fmt"
	"strings"
	"time"

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

func (r *PostgresRepository) Add(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages (uid, buffer_uid, content, content_type, attachment_key, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
	`
	if _, err := r.db.ExecContext(ctx, query,
		message.UID, message.BufferUID, message.Content, message.ContentType,
		message.AttachmentKey, message.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByBuffers(ctx context.Context, bufferUIDs []string, offset, limit int) ([]*models.Message, error) {
	if len(bufferUIDs) == 0 {
		return nil, nil
	}

	placeholders, args := expand(bufferUIDs, 1)
	query := fmt.Sprintf(`
		SELECT uid, buffer_uid, content, content_type, COALESCE(attachment_key, ''), created_at
		FROM messages
		WHERE buffer_uid IN (%s)
		ORDER BY created_at, uid
		OFFSET $%d
	`, placeholders, len(bufferUIDs)+1)
	args = append(args, offset)

	if limit >= 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(bufferUIDs)+2)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		var item models.Message
		if err := rows.Scan(&item.UID, &item.BufferUID, &item.Content, &item.ContentType,
			&item.AttachmentKey, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByUIDs(ctx context.Context, uids []string) error {
	if len(uids) == 0 {
		return nil
	}

	placeholders, args := expand(uids, 1)
	query := fmt.Sprintf(`
		DELETE FROM messages
		WHERE uid IN (%s)
	`, placeholders)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByBuffer(ctx context.Context, bufferUID string) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE buffer_uid = $1
	`
	res, err := r.db.ExecContext(ctx, query, bufferUID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE created_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// expand builds "$start, $start+1, ..." placeholders and the matching args
// slice for an IN clause.
func expand(values []string, start int) (string, []any) {
	parts := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("$%d", start+i)
		args[i] = v
	}
	return strings.Join(parts, ", "), args
}
