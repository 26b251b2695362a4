package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hushdrop/hushdrop/internal/common"
	"github.com/hushdrop/hushdrop/internal/dbx"
	"github.com/hushdrop/hushdrop/internal/logging"
	"github.com/hushdrop/hushdrop/internal/server/models"
	"github.com/hushdrop/hushdrop/internal/server/repositories/postentries"
	"github.com/hushdrop/hushdrop/internal/server/repositories/records"
)

// fakeRecordsRepo is an in-memory records.Repository for unit tests.
type fakeRecordsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.Record

	createErr error
	viewErr   error
}

func newFakeRecordsRepo() *fakeRecordsRepo {
	return &fakeRecordsRepo{rows: make(map[string]*models.Record)}
}

func (f *fakeRecordsRepo) Create(ctx context.Context, rec *models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.rows[rec.ID]; ok {
		return common.ErrorConflict
	}
	for _, r := range f.rows {
		if r.ContentHash == rec.ContentHash {
			return common.ErrorConflict
		}
	}
	clone := *rec
	f.rows[rec.ID] = &clone
	return nil
}

func (f *fakeRecordsRepo) Get(ctx context.Context, id string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *fakeRecordsRepo) GetLive(ctx context.Context, id string, now time.Time) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || !r.Live(now) {
		return nil, common.ErrorNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *fakeRecordsRepo) FindLiveByHash(ctx context.Context, hash string, now time.Time) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ContentHash == hash && r.Live(now) {
			clone := *r
			return &clone, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRecordsRepo) Delete(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return false, nil
	}
	delete(f.rows, id)
	return true, nil
}

func (f *fakeRecordsRepo) DeleteDeadByHash(ctx context.Context, hash string, now time.Time) (*records.Swept, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rows {
		if r.ContentHash == hash && !r.Live(now) {
			sw := &records.Swept{ID: r.ID, Kind: r.Kind, StorageLocation: r.StorageLocation}
			delete(f.rows, id)
			return sw, nil
		}
	}
	return nil, nil
}

func (f *fakeRecordsRepo) IncrementViewCount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.viewErr != nil {
		return f.viewErr
	}
	if r, ok := f.rows[id]; ok {
		r.ViewCount++
	}
	return nil
}

func (f *fakeRecordsRepo) SweepExpired(ctx context.Context, now time.Time) ([]records.Swept, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var swept []records.Swept
	for id, r := range f.rows {
		if !r.IsPermanent && !now.Before(r.ExpiresAt) {
			swept = append(swept, records.Swept{ID: r.ID, Kind: r.Kind, StorageLocation: r.StorageLocation})
			delete(f.rows, id)
		}
	}
	return swept, nil
}

func (f *fakeRecordsRepo) DeleteAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = make(map[string]*models.Record)
	return nil
}

// fakeEntriesRepo is an in-memory postentries.Repository for unit tests.
type fakeEntriesRepo struct {
	mu      sync.Mutex
	entries map[string][]*models.PostEntry
}

func newFakeEntriesRepo() *fakeEntriesRepo {
	return &fakeEntriesRepo{entries: make(map[string][]*models.PostEntry)}
}

func (f *fakeEntriesRepo) NextOrder(ctx context.Context, recordID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var max int64 = -1
	for _, e := range f.entries[recordID] {
		if e.Order > max {
			max = e.Order
		}
	}
	return max + 1, nil
}

func (f *fakeEntriesRepo) Append(ctx context.Context, entry *models.PostEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries[entry.RecordID] {
		if e.Order == entry.Order {
			return common.ErrorConflict
		}
	}
	clone := *entry
	f.entries[entry.RecordID] = append(f.entries[entry.RecordID], &clone)
	return nil
}

func (f *fakeEntriesRepo) List(ctx context.Context, recordID string) ([]*models.PostEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.PostEntry, 0, len(f.entries[recordID]))
	for _, e := range f.entries[recordID] {
		clone := *e
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (f *fakeEntriesRepo) DeleteAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string][]*models.PostEntry)
	return nil
}

// fakeRepoManager hands out the same fakes for any handle.
type fakeRepoManager struct {
	records *fakeRecordsRepo
	entries *fakeEntriesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{records: newFakeRecordsRepo(), entries: newFakeEntriesRepo()}
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *fakeRepoManager) Records(db dbx.DBTX) records.Repository             { return m.records }
func (m *fakeRepoManager) PostEntries(db dbx.DBTX) postentries.Repository     { return m.entries }

// fakeBlobStore keeps payloads in a map keyed by location.
type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	putErr error
	wiped  int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(ctx context.Context, id string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	loc := "fake:" + id
	f.blobs[loc] = append([]byte(nil), data...)
	return loc, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, location string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[location]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[location]; !ok {
		return common.ErrorNotFound
	}
	delete(f.blobs, location)
	return nil
}

func (f *fakeBlobStore) Wipe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs = make(map[string][]byte)
	f.wiped++
	return nil
}

func (f *fakeBlobStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
