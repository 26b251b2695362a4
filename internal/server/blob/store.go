// Package blob stores opaque encrypted payloads outside the database.
// Two backends are available: a local filesystem store and an S3-compatible
// object store.
package blob

import (
	"context"
	"errors"
)

// ErrPathOutsideRoot is returned when a computed blob path escapes the
// configured storage root.
var ErrPathOutsideRoot = errors.New("blob path escapes storage root")

// Store persists blob payloads keyed by record id. Put returns the storage
// location string recorded alongside the metadata row.
type Store interface {
	Put(ctx context.Context, id string, data []byte) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
	Wipe(ctx context.Context) error
}
