package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists companies.
type Repository interface {
	List(ctx context.Context) ([]Company, error)
	Delete(ctx context.Context, id int64) error
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type repository struct {
	db querier
}

// NewRepository builds a Postgres backed Repository.
func NewRepository(db querier) Repository {
	return &repository{db: db}
}

const (
	listCompaniesSQL  = `SELECT id, name, super_user FROM companies ORDER BY id`
	deleteCompanySQL  = `DELETE FROM companies WHERE id = $1`
	pgForeignKeyError = "23503"
)

func (r *repository) List(ctx context.Context) ([]Company, error) {
	rows, err := r.db.Query(ctx, listCompaniesSQL)
	if err != nil {
		return nil, fmt.Errorf("companies: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Company, error) {
		var c Company
		err := row.Scan(&c.ID, &c.Name, &c.SuperUser)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("companies: scan: %w", err)
	}
	return out, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, deleteCompanySQL, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyError {
		return fmt.Errorf("%w: %s", ErrCompanyInUse, pgErr.ConstraintName)
	}
	return fmt.Errorf("companies: delete: %w", err)
}
