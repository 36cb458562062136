package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onemove/marketplace/internal/domain/sale"
)

type SalesRepo struct {
	pool *pgxpool.Pool
}

func NewSalesRepo(pool *pgxpool.Pool) *SalesRepo {
	return &SalesRepo{pool: pool}
}

func (r *SalesRepo) ListByOwner(ctx context.Context, ownerID string) ([]sale.Sale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, title, quantity, price, owner_id, buyer_id, created_at
		 FROM sales
		 WHERE owner_id = $1
		 ORDER BY created_at DESC, id`,
		ownerID,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	output := make([]sale.Sale, 0)

	for rows.Next() {
		var s sale.Sale

		err = rows.Scan(&s.ID, &s.ProductID, &s.Title, &s.Quantity, &s.Price, &s.OwnerID, &s.BuyerID, &s.CreatedAt)

		if err != nil {
			return nil, err
		}

		output = append(output, s)
	}

	return output, rows.Err()
}
