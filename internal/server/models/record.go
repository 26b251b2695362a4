// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"
)

// Kind distinguishes a one-off file upload from an appendable post.
// Pastes are file-kind records with a short expiry.
type Kind string

const (
	KindFile Kind = "file"
	KindPost Kind = "post"
)

func (k Kind) String() string { return string(k) }

// ParseKind converts the stored/wire representation into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "post":
		return KindPost, nil
	default:
		return "", fmt.Errorf("invalid record kind: %q", s)
	}
}

// Record is the metadata row for one stored blob. The payload itself is
// opaque ciphertext: the server never inspects it and holds no keys.
type Record struct {
	// ID is the server-generated identifier, never reused.
	ID string
	// ContentHash is the hex BLAKE2b-256 digest of the stored bytes,
	// used only for deduplication.
	ContentHash string

	SizeBytes int64
	// MimeType and FileExtension are client hints, echoed back verbatim.
	MimeType      string
	FileExtension string

	Kind Kind
	// DeletionToken must be presented to delete the record.
	DeletionToken string
	// AppendKey gates post appends; empty unless Kind is KindPost.
	AppendKey string

	IsPermanent bool
	UploadedAt  time.Time
	ExpiresAt   time.Time
	ViewCount   int64

	// StorageLocation is a filesystem path or object key for file-kind
	// records, or a "post:{id}" marker when the content lives in the
	// post ledger.
	StorageLocation string
}

// Live reports whether the record is permanent or not yet past its expiry.
func (r *Record) Live(now time.Time) bool {
	return r.IsPermanent || now.Before(r.ExpiresAt)
}
