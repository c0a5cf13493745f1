//go:generate mockgen -source ./postgres.go -destination=./mocks/repository.go -package=mock_storage
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/repository"
)

type PackageRepository interface {
	EnsureSchema(ctx context.Context) error
	List(ctx context.Context) ([]*repository.PackageRow, error)
	DeleteAllTx(ctx context.Context, tx db.Tx) error
	CreateTx(ctx context.Context, tx db.Tx, row *repository.PackageRow) error
}

// PostgresStorage persists the collection as ordered rows of a single
// table. SaveAll swaps the whole table content inside one transaction.
type PostgresStorage struct {
	db   db.DB
	repo PackageRepository
}

func NewPostgresStorage(db db.DB, repo PackageRepository) *PostgresStorage {
	return &PostgresStorage{
		db:   db,
		repo: repo,
	}
}

func (s *PostgresStorage) Init(ctx context.Context) error {
	return s.repo.EnsureSchema(ctx)
}

func (s *PostgresStorage) LoadAll(ctx context.Context) ([]Package, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list packages: %w", ErrStorageRead, err)
	}

	pkgs := make([]Package, 0, len(rows))
	for _, row := range rows {
		var p Package
		if err := json.Unmarshal(row.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: failed to decode package %s: %w", ErrStorageRead, row.ID, err)
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, nil
}

func (s *PostgresStorage) SaveAll(ctx context.Context, pkgs []Package) (err error) {
	rows := make([]*repository.PackageRow, len(pkgs))
	for i, p := range pkgs {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("%w: failed to encode package %s: %w", ErrStorageWrite, p.ID, err)
		}
		rows[i] = &repository.PackageRow{Position: i, ID: p.ID, Data: data}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ErrStorageWrite, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = s.repo.DeleteAllTx(ctx, tx); err != nil {
		return fmt.Errorf("%w: failed to clear packages: %w", ErrStorageWrite, err)
	}
	for _, row := range rows {
		if err = s.repo.CreateTx(ctx, tx, row); err != nil {
			return fmt.Errorf("%w: failed to insert package %s: %w", ErrStorageWrite, row.ID, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", ErrStorageWrite, err)
	}
	return nil
}
