package postgresql

import (
	"context"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/storage"
)

const createPackagesTable = `
    CREATE TABLE IF NOT EXISTS packages (
        position INTEGER NOT NULL,
        id       TEXT PRIMARY KEY,
        data     JSONB NOT NULL
    )
`

type PackageRepo struct {
	db db.DB
}

func NewPackageRepo(db db.DB) storage.PackageRepository {
	return &PackageRepo{db: db}
}

func (r *PackageRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createPackagesTable); err != nil {
		return fmt.Errorf("failed to create packages table: %w", err)
	}
	return nil
}

func (r *PackageRepo) List(ctx context.Context) ([]*repository.PackageRow, error) {
	var rows []*repository.PackageRow
	err := r.db.Select(ctx, &rows, "SELECT position, id, data FROM packages ORDER BY position ASC")
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PackageRepo) DeleteAllTx(ctx context.Context, tx db.Tx) error {
	_, err := tx.Exec(ctx, "DELETE FROM packages")
	return err
}

func (r *PackageRepo) CreateTx(ctx context.Context, tx db.Tx, row *repository.PackageRow) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO packages (position, id, data)
        VALUES ($1, $2, $3)
    `, row.Position, row.ID, string(row.Data))
	return err
}
