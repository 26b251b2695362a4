package postentries

import (
	"context"

	"github.com/hushdrop/hushdrop/internal/server/models"
)

type Repository interface {
	// NextOrder returns max(entry_order)+1 for the record, or 0 when no
	// entries exist. Callers must serialize NextOrder+Append per record.
	NextOrder(ctx context.Context, recordID string) (int64, error)

	// Append inserts an entry at its assigned order. Returns
	// common.ErrorConflict if the (record, order) slot is already taken.
	Append(ctx context.Context, entry *models.PostEntry) error

	// List returns the record's entries sorted by order ascending; this is
	// the externally visible append order.
	List(ctx context.Context, recordID string) ([]*models.PostEntry, error)

	// DeleteAll removes every entry (full wipe).
	DeleteAll(ctx context.Context) error
}
