package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hushdrop/hushdrop/internal/common"
)

// FileStore keeps blobs as flat files under a single root directory.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed and returns a store
// rooted at it.
func NewFileStore(root string) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// confine resolves name against the root and rejects any path that would
// land outside it.
func (s *FileStore) confine(name string) (string, error) {
	p := filepath.Join(s.root, filepath.Clean("/"+name))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	return p, nil
}

func (s *FileStore) Put(ctx context.Context, id string, data []byte) (string, error) {
	path, err := s.confine(id)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("creating blob file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("writing blob file: %w", err)
	}
	// Payload must be durable before the metadata row is committed.
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("syncing blob file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing blob file: %w", err)
	}
	return path, nil
}

func (s *FileStore) Get(ctx context.Context, location string) ([]byte, error) {
	rel, err := filepath.Rel(s.root, location)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		data, err := os.ReadFile(location)
		if os.IsNotExist(err) {
			return nil, common.ErrorNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("reading blob file: %w", err)
		}
		return data, nil
	}
	return nil, ErrPathOutsideRoot
}

func (s *FileStore) Delete(ctx context.Context, location string) error {
	rel, err := filepath.Rel(s.root, location)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrPathOutsideRoot
	}
	if err := os.Remove(location); err != nil {
		if os.IsNotExist(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("removing blob file: %w", err)
	}
	return nil
}

// Wipe removes every stored blob and recreates the empty root.
func (s *FileStore) Wipe(ctx context.Context) error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("wiping blob storage: %w", err)
	}
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("recreating storage root: %w", err)
	}
	return nil
}
