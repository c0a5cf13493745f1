//go:generate mockgen -source ./service.go -destination=./mocks/service.go -package=mock_packages
package packages

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/storage"
)

// Store reads and writes the whole package collection at once.
type Store interface {
	LoadAll(ctx context.Context) ([]storage.Package, error)
	SaveAll(ctx context.Context, pkgs []storage.Package) error
}

// ImageStore keeps uploaded photos and returns a reference to them.
type ImageStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

// Service implements the package CRUD operations on top of a Store.
// Mutations hold mu for the whole load-modify-save cycle so two requests
// in this process never interleave and lose an update.
type Service struct {
	store  Store
	images ImageStore
	logger *zap.Logger
	newID  func() string
	mu     sync.Mutex
}

func NewService(store Store, images ImageStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		images: images,
		logger: logger,
		newID:  uuid.NewString,
	}
}

func (s *Service) Create(ctx context.Context, in PackageInput) (string, error) {
	if missing := in.missingFields(); len(missing) > 0 {
		metrics.OperationErrorsTotal.WithLabelValues("create_validation").Inc()
		return "", &ValidationError{Missing: missing}
	}

	pkg := in.toPackage(s.newID())

	s.mu.Lock()
	defer s.mu.Unlock()

	pkgs, err := s.store.LoadAll(ctx)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("create").Inc()
		return "", fmt.Errorf("load packages: %w", err)
	}

	if in.Image != nil {
		ref, err := s.saveImage(ctx, in.Image)
		if err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("create").Inc()
			return "", err
		}
		pkg.Image = &ref
	}

	pkgs = append(pkgs, pkg)
	if err := s.store.SaveAll(ctx, pkgs); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("create").Inc()
		s.discardImage(ctx, pkg.Image)
		return "", fmt.Errorf("save packages: %w", err)
	}

	metrics.PackagesCreatedTotal.Inc()
	metrics.StoredPackages.Set(float64(len(pkgs)))
	s.logger.Info("package created",
		zap.String("id", pkg.ID),
		zap.String("packageName", pkg.PackageName),
		zap.Bool("withImage", pkg.Image != nil),
	)
	return pkg.ID, nil
}

func (s *Service) List(ctx context.Context) ([]storage.Package, error) {
	pkgs, err := s.store.LoadAll(ctx)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("list").Inc()
		return nil, fmt.Errorf("load packages: %w", err)
	}
	metrics.StoredPackages.Set(float64(len(pkgs)))
	return pkgs, nil
}

func (s *Service) Get(ctx context.Context, id string) (*storage.Package, error) {
	pkgs, err := s.store.LoadAll(ctx)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("load packages: %w", err)
	}

	i := indexOf(pkgs, id)
	if i < 0 {
		return nil, &NotFoundError{ID: id}
	}
	pkg := pkgs[i]
	return &pkg, nil
}

// Update merges u over the stored package. Unlike Create it does not check
// required fields, so an edit may blank out e.g. the package name.
func (s *Service) Update(ctx context.Context, id string, u PackageUpdate) (*storage.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkgs, err := s.store.LoadAll(ctx)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("update").Inc()
		return nil, fmt.Errorf("load packages: %w", err)
	}

	i := indexOf(pkgs, id)
	if i < 0 {
		return nil, &NotFoundError{ID: id}
	}

	updated := pkgs[i].Clone()
	u.apply(&updated)
	if u.Image != nil {
		ref, err := s.saveImage(ctx, u.Image)
		if err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("update").Inc()
			return nil, err
		}
		updated.Image = &ref
	}

	pkgs[i] = updated
	if err := s.store.SaveAll(ctx, pkgs); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("update").Inc()
		if u.Image != nil {
			s.discardImage(ctx, updated.Image)
		}
		return nil, fmt.Errorf("save packages: %w", err)
	}

	metrics.PackagesUpdatedTotal.Inc()
	s.logger.Info("package updated",
		zap.String("id", id),
		zap.String("packageStatus", updated.PackageStatus),
	)
	return &updated, nil
}

func (s *Service) saveImage(ctx context.Context, img *Image) (string, error) {
	ref, err := s.images.Save(ctx, img.Name, img.Content)
	if err != nil {
		return "", fmt.Errorf("store image %q: %w", img.Name, err)
	}
	metrics.ImagesUploadedTotal.Inc()
	return ref, nil
}

// discardImage removes an upload that no saved record points to.
func (s *Service) discardImage(ctx context.Context, ref *string) {
	if ref == nil {
		return
	}
	if err := s.images.Remove(ctx, *ref); err != nil {
		s.logger.Warn("remove orphaned image", zap.String("image", *ref), zap.Error(err))
	}
}

func indexOf(pkgs []storage.Package, id string) int {
	for i := range pkgs {
		if pkgs[i].ID == id {
			return i
		}
	}
	return -1
}
