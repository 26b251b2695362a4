// Package services implements the server's business logic on top of the
// repositories, the blob store and the capability verifier.
package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hushdrop/hushdrop/internal/common"
	"github.com/hushdrop/hushdrop/internal/dbx"
	"github.com/hushdrop/hushdrop/internal/logging"
	"github.com/hushdrop/hushdrop/internal/server/blob"
	"github.com/hushdrop/hushdrop/internal/server/capability"
	"github.com/hushdrop/hushdrop/internal/server/config"
	"github.com/hushdrop/hushdrop/internal/server/models"
	"github.com/hushdrop/hushdrop/internal/server/repositories/records"
	"github.com/hushdrop/hushdrop/internal/server/repositories/repomanager"
	"golang.org/x/crypto/blake2b"
)

// permanentRetention approximates "never expires" with a far-future expiry,
// so permanent rows need no special casing in liveness predicates.
const permanentRetention = 100 * 365 * 24 * time.Hour

// secretTokenSize is the byte length of generated deletion tokens and
// append keys (hex-encoded to twice that many characters).
const secretTokenSize = 16

// postLocationPrefix marks records whose content lives in the post ledger
// rather than the blob store.
const postLocationPrefix = "post:"

// UploadRequest carries one client payload plus its advisory metadata.
// Data is opaque ciphertext; the server stores it verbatim.
type UploadRequest struct {
	Data          []byte
	Kind          models.Kind
	MimeType      string
	FileExtension string
	// ExpiryHours of 0 selects the configured default. Values above the
	// configured maximum are clamped.
	ExpiryHours int
	Permanent   bool
}

// UploadResult reports the stored record. Deduplicated is true when the
// payload matched an existing live record and no new row was created.
type UploadResult struct {
	Record       *models.Record
	Deduplicated bool
}

// AppendRequest carries one ledger entry for an existing post.
type AppendRequest struct {
	RecordID  string
	AppendKey string
	Content   string
	// ContentType defaults to markdown when empty.
	ContentType string
	// File-chunk hints, honored only for file-typed entries.
	MimeType      string
	FileExtension string
}

// RecordService owns the record lifecycle: upload with dedup, download,
// capability-gated deletion and appends, expiry sweeps and full wipes.
type RecordService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	blobs    blob.Store
	verifier *capability.Verifier
	logger   logging.Logger
	config   *config.Config

	// now is the clock, replaceable in tests.
	now func() time.Time

	// appendLocks serializes order assignment per record. Striping keeps
	// the lock table bounded; collisions only cost extra serialization.
	appendLocks [64]sync.Mutex
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store,
	verifier *capability.Verifier, logger logging.Logger, cfg *config.Config) *RecordService {
	return &RecordService{
		db:       db,
		repos:    m,
		blobs:    blobs,
		verifier: verifier,
		logger:   logger,
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// hashContent returns the hex BLAKE2b-256 digest used for deduplication.
func hashContent(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *RecordService) appendLock(recordID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(recordID))
	return &s.appendLocks[h.Sum32()%uint32(len(s.appendLocks))]
}

// expiry resolves the retention window for a new record.
func (s *RecordService) expiry(req *UploadRequest, now time.Time) (time.Time, bool) {
	if req.Permanent {
		return now.Add(permanentRetention), true
	}
	hours := req.ExpiryHours
	if hours <= 0 {
		hours = s.config.DefaultExpiryHours
	}
	if hours > s.config.MaxExpiryHours {
		hours = s.config.MaxExpiryHours
	}
	return now.Add(time.Duration(hours) * time.Hour), false
}

// Upload stores a payload and returns its record. Identical payloads that
// are still live deduplicate to the existing record instead of creating a
// new one.
func (s *RecordService) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if int64(len(req.Data)) > s.config.MaxUploadSizeBytes() {
		return nil, common.ErrorSizeLimitExceeded
	}
	if req.Kind != models.KindFile && req.Kind != models.KindPost {
		return nil, fmt.Errorf("%w: unknown record kind %q", common.ErrorWrongKind, req.Kind)
	}

	now := s.now()
	hash := hashContent(req.Data)
	repo := s.repos.Records(s.db)

	existing, err := repo.FindLiveByHash(ctx, hash, now)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		s.logger.Debug(ctx, "upload deduplicated", "record_id", existing.ID)
		return &UploadResult{Record: existing, Deduplicated: true}, nil
	}

	expiresAt, permanent := s.expiry(req, now)

	deletionToken, err := common.MakeRandHexString(secretTokenSize)
	if err != nil {
		return nil, fmt.Errorf("generating deletion token: %w", err)
	}
	appendKey := ""
	if req.Kind == models.KindPost {
		appendKey, err = common.MakeRandHexString(secretTokenSize)
		if err != nil {
			return nil, fmt.Errorf("generating append key: %w", err)
		}
	}

	rec := &models.Record{
		ID:            uuid.New().String(),
		ContentHash:   hash,
		SizeBytes:     int64(len(req.Data)),
		MimeType:      req.MimeType,
		FileExtension: req.FileExtension,
		Kind:          req.Kind,
		DeletionToken: deletionToken,
		AppendKey:     appendKey,
		IsPermanent:   permanent,
		UploadedAt:    now,
		ExpiresAt:     expiresAt,
	}

	if req.Kind == models.KindFile {
		location, err := s.blobs.Put(ctx, rec.ID, req.Data)
		if err != nil {
			return nil, fmt.Errorf("storing blob: %w", err)
		}
		rec.StorageLocation = location
	} else {
		rec.StorageLocation = postLocationPrefix + rec.ID
	}

	winner, created, err := s.createDeduped(ctx, rec, now)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost a race to an identical live payload; the winner serves both.
		s.discardBlob(ctx, rec)
		return &UploadResult{Record: winner, Deduplicated: true}, nil
	}

	if rec.Kind == models.KindPost && len(req.Data) > 0 {
		entry := &models.PostEntry{
			RecordID:    rec.ID,
			Order:       0,
			Content:     string(req.Data),
			ContentType: models.ContentMarkdown,
			ContentSize: int64(len(req.Data)),
			AppendedAt:  now,
		}
		if err := s.repos.PostEntries(s.db).Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("writing initial post entry: %w", err)
		}
	}

	return &UploadResult{Record: rec}, nil
}

// createDeduped inserts rec, resolving content-hash collisions. A dead row
// holding the hash is evicted and the insert retried once; a live row wins
// the race and is returned instead of rec.
func (s *RecordService) createDeduped(ctx context.Context, rec *models.Record, now time.Time) (*models.Record, bool, error) {
	repo := s.repos.Records(s.db)

	err := repo.Create(ctx, rec)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, common.ErrorConflict) {
		return nil, false, fmt.Errorf("creating record: %w", err)
	}

	swept, err := repo.DeleteDeadByHash(ctx, rec.ContentHash, now)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, false, fmt.Errorf("evicting expired record: %w", err)
	}
	if swept != nil {
		s.discardSwept(ctx, []records.Swept{*swept})
		if err := repo.Create(ctx, rec); err == nil {
			return rec, true, nil
		} else if !errors.Is(err, common.ErrorConflict) {
			return nil, false, fmt.Errorf("creating record: %w", err)
		}
	}

	winner, err := repo.FindLiveByHash(ctx, rec.ContentHash, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, false, common.ErrorConflict
		}
		return nil, false, fmt.Errorf("dedup lookup after conflict: %w", err)
	}
	return winner, false, nil
}

// discardBlob removes rec's payload after the record row was not kept.
func (s *RecordService) discardBlob(ctx context.Context, rec *models.Record) {
	if rec.Kind != models.KindFile {
		return
	}
	if err := s.blobs.Delete(ctx, rec.StorageLocation); err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "failed to discard orphan blob", "record_id", rec.ID, "error", err)
	}
}

// Download returns a file record's metadata and payload. Posts are rejected
// with a wrong-kind error; their content is read through ViewPost.
func (s *RecordService) Download(ctx context.Context, id string) (*models.Record, []byte, error) {
	rec, err := s.repos.Records(s.db).GetLive(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("loading record: %w", err)
	}
	if rec.Kind != models.KindFile {
		return nil, nil, common.ErrorWrongKind
	}

	data, err := s.blobs.Get(ctx, rec.StorageLocation)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("reading blob: %w", err)
	}

	s.bumpViewCount(ctx, rec)

	return rec, data, nil
}

// bumpViewCount is best-effort; a lost increment never fails the request.
func (s *RecordService) bumpViewCount(ctx context.Context, rec *models.Record) {
	if err := s.repos.Records(s.db).IncrementViewCount(ctx, rec.ID); err != nil {
		s.logger.Warn(ctx, "failed to increment view count", "record_id", rec.ID, "error", err)
		return
	}
	rec.ViewCount++
}

// Delete removes a record after verifying its deletion token. The
// capability check runs even when the record does not exist, so the two
// failure modes cost the same.
func (s *RecordService) Delete(ctx context.Context, id string, token string) error {
	rec, err := s.repos.Records(s.db).Get(ctx, id)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("loading record: %w", err)
	}

	ok := s.verifier.Verify(rec, capability.DeletionToken, token)
	if rec == nil {
		return common.ErrorNotFound
	}
	if !ok {
		return common.ErrorForbidden
	}

	deleted, err := s.repos.Records(s.db).Delete(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if !deleted {
		return common.ErrorNotFound
	}

	s.discardBlob(ctx, rec)

	return nil
}

// ViewPost returns a post's metadata and its ledger entries in append
// order. File records are reported as not found rather than wrong-kind.
func (s *RecordService) ViewPost(ctx context.Context, id string) (*models.Record, []*models.PostEntry, error) {
	rec, err := s.repos.Records(s.db).GetLive(ctx, id, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("loading record: %w", err)
	}
	if rec.Kind != models.KindPost {
		return nil, nil, common.ErrorNotFound
	}

	entries, err := s.repos.PostEntries(s.db).List(ctx, rec.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing post entries: %w", err)
	}

	s.bumpViewCount(ctx, rec)

	return rec, entries, nil
}

// AppendToPost verifies the append key and adds one entry to the post's
// ledger. Appends to the same post are serialized, so each entry receives
// the next order value with no gaps or reuse.
func (s *RecordService) AppendToPost(ctx context.Context, req *AppendRequest) (*models.PostEntry, error) {
	if int64(len(req.Content)) > s.config.MaxUploadSizeBytes() {
		return nil, common.ErrorSizeLimitExceeded
	}

	contentType := models.ContentMarkdown
	if req.ContentType != "" {
		parsed, err := models.ParseContentType(req.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorWrongKind, err)
		}
		contentType = parsed
	}

	rec, err := s.repos.Records(s.db).Get(ctx, req.RecordID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("loading record: %w", err)
	}

	// File records carry no append key, so verification fails for them the
	// same way it does for a wrong key.
	ok := s.verifier.Verify(rec, capability.AppendKey, req.AppendKey)
	if rec == nil {
		return nil, common.ErrorNotFound
	}
	if !ok {
		return nil, common.ErrorForbidden
	}

	now := s.now()
	if !rec.Live(now) {
		return nil, common.ErrorNotFound
	}

	entry := &models.PostEntry{
		RecordID:    rec.ID,
		Content:     req.Content,
		ContentType: contentType,
		ContentSize: int64(len(req.Content)),
		AppendedAt:  now,
	}
	if contentType == models.ContentFile {
		entry.MimeType = req.MimeType
		entry.FileExtension = req.FileExtension
	}

	lock := s.appendLock(rec.ID)
	lock.Lock()
	defer lock.Unlock()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entriesRepo := s.repos.PostEntries(tx)

		order, err := entriesRepo.NextOrder(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("assigning entry order: %w", err)
		}
		if order >= int64(s.config.MaxPostEntries) {
			return common.ErrorEntryLimitExceeded
		}
		entry.Order = order

		if err := entriesRepo.Append(ctx, entry); err != nil {
			return fmt.Errorf("appending entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// CleanupExpired removes every non-permanent record past its expiry together
// with its ledger entries and blob, returning how many were removed.
func (s *RecordService) CleanupExpired(ctx context.Context) (int, error) {
	now := s.now()

	swept, err := s.repos.Records(s.db).SweepExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired records: %w", err)
	}

	s.discardSwept(ctx, swept)

	if len(swept) > 0 {
		s.logger.Info(ctx, "expired records removed", "count", len(swept))
	}

	return len(swept), nil
}

// WipeAll removes every record, every ledger entry and every blob,
// permanent records included.
func (s *RecordService) WipeAll(ctx context.Context) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.PostEntries(tx).DeleteAll(ctx); err != nil {
			return fmt.Errorf("wiping post entries: %w", err)
		}
		if err := s.repos.Records(tx).DeleteAll(ctx); err != nil {
			return fmt.Errorf("wiping records: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.blobs.Wipe(ctx); err != nil {
		return fmt.Errorf("wiping blob storage: %w", err)
	}

	s.logger.Warn(ctx, "all stored data wiped")

	return nil
}

func (s *RecordService) discardSwept(ctx context.Context, swept []records.Swept) {
	for _, sw := range swept {
		if sw.Kind != models.KindFile {
			continue
		}
		if err := s.blobs.Delete(ctx, sw.StorageLocation); err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "failed to remove swept blob", "record_id", sw.ID, "error", err)
		}
	}
}
