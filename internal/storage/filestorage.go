package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStorage keeps the whole collection in one JSON array on disk.
// Every call goes back to the file; nothing is cached between calls.
type FileStorage struct {
	filePath string
	mu       sync.Mutex
}

func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{filePath: filePath}
}

func (fs *FileStorage) Path() string {
	return fs.filePath
}

func (fs *FileStorage) LoadAll(ctx context.Context) ([]Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Package{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorageRead, fs.filePath, err)
	}

	var pkgs []Package
	if err := json.Unmarshal(data, &pkgs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrStorageRead, fs.filePath, err)
	}
	if pkgs == nil {
		pkgs = []Package{}
	}
	return pkgs, nil
}

// SaveAll writes to a temp file next to the target and renames it over,
// so a crash mid-write leaves the previous collection intact.
func (fs *FileStorage) SaveAll(ctx context.Context, pkgs []Package) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if pkgs == nil {
		pkgs = []Package{}
	}

	data, err := json.MarshalIndent(pkgs, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStorageWrite, err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(fs.filePath), "."+filepath.Base(fs.filePath)+".*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrStorageWrite, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrStorageWrite, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStorageWrite, tmpName, err)
	}
	if err := os.Rename(tmpName, fs.filePath); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrStorageWrite, fs.filePath, err)
	}
	return nil
}
