// Package records provides the SQL-backed record registry: metadata rows for
// files, posts, and pastes, plus the content-hash index used for dedup.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hushdrop/hushdrop/internal/common"
	"github.com/hushdrop/hushdrop/internal/dbx"
	"github.com/hushdrop/hushdrop/internal/server/models"
)

// SQLRepository implements record storage over a dbx.DBTX (*sql.DB or
// *sql.Tx). Queries stick to the SQL subset shared by PostgreSQL and SQLite:
// $n placeholders, timestamps passed as arguments, DELETE ... RETURNING.
type SQLRepository struct {
	db dbx.DBTX
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

const recordColumns = `id, content_hash, size_bytes, mime_type, file_extension, kind,
		deletion_token, append_key, is_permanent, uploaded_at, expires_at, view_count, storage_location`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var rec models.Record
	var kind string
	if err := row.Scan(
		&rec.ID, &rec.ContentHash, &rec.SizeBytes, &rec.MimeType, &rec.FileExtension, &kind,
		&rec.DeletionToken, &rec.AppendKey, &rec.IsPermanent, &rec.UploadedAt, &rec.ExpiresAt,
		&rec.ViewCount, &rec.StorageLocation,
	); err != nil {
		return nil, err
	}
	k, err := models.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	rec.Kind = k
	return &rec, nil
}

func (r *SQLRepository) Create(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.ContentHash, rec.SizeBytes, rec.MimeType, rec.FileExtension, rec.Kind.String(),
		rec.DeletionToken, rec.AppendKey, rec.IsPermanent, rec.UploadedAt, rec.ExpiresAt,
		rec.ViewCount, rec.StorageLocation)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return rec, nil
}

func (r *SQLRepository) GetLive(ctx context.Context, id string, now time.Time) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE id = $1 AND (is_permanent = TRUE OR expires_at > $2)`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return rec, nil
}

func (r *SQLRepository) FindLiveByHash(ctx context.Context, hash string, now time.Time) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE content_hash = $1 AND (is_permanent = TRUE OR expires_at > $2)`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, hash, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select record by hash: %w", err)
	}
	return rec, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) DeleteDeadByHash(ctx context.Context, hash string, now time.Time) (*Swept, error) {
	query := `
		DELETE FROM records
		WHERE content_hash = $1 AND is_permanent = FALSE AND expires_at <= $2
		RETURNING id, kind, storage_location`
	rows, err := r.db.QueryContext(ctx, query, hash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to evict dead record: %w", err)
	}
	defer rows.Close()

	var swept *Swept
	if rows.Next() {
		swept, err = scanSwept(rows)
		if err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return swept, nil
}

func (r *SQLRepository) IncrementViewCount(ctx context.Context, id string) error {
	query := `UPDATE records SET view_count = view_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	return nil
}

func (r *SQLRepository) SweepExpired(ctx context.Context, now time.Time) ([]Swept, error) {
	query := `
		DELETE FROM records
		WHERE is_permanent = FALSE AND expires_at <= $1
		RETURNING id, kind, storage_location`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep expired records: %w", err)
	}
	defer rows.Close()

	var result []Swept
	for rows.Next() {
		s, err := scanSwept(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func scanSwept(row rowScanner) (*Swept, error) {
	var s Swept
	var kind string
	if err := row.Scan(&s.ID, &kind, &s.StorageLocation); err != nil {
		return nil, err
	}
	k, err := models.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	s.Kind = k
	return &s, nil
}
