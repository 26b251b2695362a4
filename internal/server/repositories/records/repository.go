package records

import (
	"context"
	"time"

	"github.com/hushdrop/hushdrop/internal/server/models"
)

// Swept describes one record removed by an expiry sweep, carrying enough
// for the caller to reconcile the on-disk blob.
type Swept struct {
	ID              string
	Kind            models.Kind
	StorageLocation string
}

type Repository interface {
	// Create inserts a new record. Returns common.ErrorConflict when the
	// id or content hash collides with an existing row.
	Create(ctx context.Context, rec *models.Record) error

	// Get returns the record regardless of liveness, or common.ErrorNotFound.
	// Used by the deletion and capability paths only.
	Get(ctx context.Context, id string) (*models.Record, error)

	// GetLive returns the record only if it is permanent or unexpired at now.
	GetLive(ctx context.Context, id string, now time.Time) (*models.Record, error)

	// FindLiveByHash is the dedup lookup; live rows only, never used for
	// authorization.
	FindLiveByHash(ctx context.Context, hash string, now time.Time) (*models.Record, error)

	// Delete removes the row by id, reporting whether one was removed.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteDeadByHash evicts an expired non-permanent row still holding
	// the hash, returning it so the caller can reconcile its blob.
	DeleteDeadByHash(ctx context.Context, hash string, now time.Time) (*Swept, error)

	// IncrementViewCount is a best-effort counter bump; lost updates are
	// tolerable.
	IncrementViewCount(ctx context.Context, id string) error

	// SweepExpired deletes all non-permanent rows with expires_at <= now
	// and returns what was removed.
	SweepExpired(ctx context.Context, now time.Time) ([]Swept, error)

	// DeleteAll removes every row, permanent ones included (full wipe).
	DeleteAll(ctx context.Context) error
}
