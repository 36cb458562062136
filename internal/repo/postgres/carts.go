package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onemove/marketplace/internal/domain/cart"
)

type CartsRepo struct {
	pool *pgxpool.Pool
}

func NewCartsRepo(pool *pgxpool.Pool) *CartsRepo {
	return &CartsRepo{pool: pool}
}

func (r *CartsRepo) Create(ctx context.Context, e cart.Entry) (cart.Entry, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO carts (id, product_id, owner_id, quantity, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ProductID, e.OwnerID, e.Quantity, e.CreatedAt,
	)

	if err != nil {
		return cart.Entry{}, err
	}

	return e, nil
}

func (r *CartsRepo) ListByOwner(ctx context.Context, ownerID string) ([]cart.Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, owner_id, quantity, created_at
		 FROM carts
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id`,
		ownerID,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	output := make([]cart.Entry, 0)

	for rows.Next() {
		var e cart.Entry

		err = rows.Scan(&e.ID, &e.ProductID, &e.OwnerID, &e.Quantity, &e.CreatedAt)

		if err != nil {
			return nil, err
		}

		output = append(output, e)
	}

	return output, rows.Err()
}
