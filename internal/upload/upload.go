package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrUnknownReference = errors.New("not an upload reference")

// DiskStore writes uploaded images into a public directory and hands back
// the URL path under which the static file server exposes them.
type DiskStore struct {
	dir       string
	urlPrefix string
	newToken  func() string
}

func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
	}
	return &DiskStore{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		newToken:  uuid.NewString,
	}, nil
}

// Save stores r as <token>-<original base name> and returns its reference,
// e.g. /uploads/2f1c...-photo.png.
func (s *DiskStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := s.newToken() + "-" + sanitizeName(originalName)
	dst := filepath.Join(s.dir, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("write upload %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("close upload %s: %w", name, err)
	}

	return path.Join(s.urlPrefix, name), nil
}

// Remove deletes the upload behind a reference returned by Save. A file that
// is already gone is not an error.
func (s *DiskStore) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := strings.TrimPrefix(ref, s.urlPrefix+"/")
	if name == ref || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %s", ErrUnknownReference, ref)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload %s: %w", name, err)
	}
	return nil
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "upload"
	}
	return name
}
