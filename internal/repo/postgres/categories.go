package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onemove/marketplace/internal/domain/category"
)

var ErrCategoryNotFound = errors.New("category not found")

// categoryQuerier is the slice of pgxpool.Pool the repo uses.
type categoryQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type CategoriesRepo struct {
	pool categoryQuerier
}

func NewCategoriesRepo(pool *pgxpool.Pool) *CategoriesRepo {
	return &CategoriesRepo{pool: pool}
}

func (r *CategoriesRepo) GetByName(ctx context.Context, name string) (category.Category, error) {
	var c category.Category

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, parent_id, created_at
		 FROM categories
		 WHERE name = $1`,
		name,
	).Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return category.Category{}, ErrCategoryNotFound
		}

		return category.Category{}, err
	}

	return c, nil
}

// FindOrCreate returns the category with the given name, creating it on
// first use. The parent, when named, is resolved by name and optional:
// an unknown parent name just yields a root category.
func (r *CategoriesRepo) FindOrCreate(ctx context.Context, name, description, parentName string) (category.Category, error) {
	existing, err := r.GetByName(ctx, name)

	if err == nil {
		return existing, nil
	}

	if !errors.Is(err, ErrCategoryNotFound) {
		return category.Category{}, err
	}

	var parentID *string

	if parentName != "" {
		parent, err := r.GetByName(ctx, parentName)

		if err == nil {
			parentID = &parent.ID
		} else if !errors.Is(err, ErrCategoryNotFound) {
			return category.Category{}, err
		}
	}

	c := category.New(name, description, parentID)

	_, err = r.pool.Exec(ctx,
		`INSERT INTO categories (id, name, description, parent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Description, c.ParentID, c.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError

		// concurrent create of the same name: the other writer won
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return r.GetByName(ctx, name)
		}

		return category.Category{}, err
	}

	return c, nil
}
