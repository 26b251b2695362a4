// Package postentries provides the SQL-backed post ledger: the ordered,
// append-only sequence of content entries belonging to a post record.
package postentries

import (
	"context"
	"fmt"

	"github.com/hushdrop/hushdrop/internal/common"
	"github.com/hushdrop/hushdrop/internal/dbx"
	"github.com/hushdrop/hushdrop/internal/server/models"
)

// SQLRepository implements the ledger over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) NextOrder(ctx context.Context, recordID string) (int64, error) {
	query := `SELECT COALESCE(MAX(entry_order), -1) + 1 FROM post_entries WHERE record_id = $1`
	var next int64
	if err := r.db.QueryRowContext(ctx, query, recordID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next order: %w", err)
	}
	return next, nil
}

func (r *SQLRepository) Append(ctx context.Context, entry *models.PostEntry) error {
	query := `
		INSERT INTO post_entries (record_id, entry_order, content, content_type,
			mime_type, file_extension, content_size, appended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		entry.RecordID, entry.Order, entry.Content, entry.ContentType.String(),
		entry.MimeType, entry.FileExtension, entry.ContentSize, entry.AppendedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, recordID string) ([]*models.PostEntry, error) {
	query := `
		SELECT record_id, entry_order, content, content_type,
			mime_type, file_extension, content_size, appended_at
		FROM post_entries
		WHERE record_id = $1
		ORDER BY entry_order ASC`
	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to select post entries: %w", err)
	}
	defer rows.Close()

	var result []*models.PostEntry
	for rows.Next() {
		var item models.PostEntry
		var contentType string
		if err := rows.Scan(
			&item.RecordID, &item.Order, &item.Content, &contentType,
			&item.MimeType, &item.FileExtension, &item.ContentSize, &item.AppendedAt,
		); err != nil {
			return nil, err
		}
		ct, err := models.ParseContentType(contentType)
		if err != nil {
			return nil, err
		}
		item.ContentType = ct
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM post_entries`); err != nil {
		return fmt.Errorf("failed to delete post entries: %w", err)
	}
	return nil
}
