package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/onemove/marketplace/internal/domain/product"
)

var ErrProductNotFound = errors.New("product not found")

const productColumns = `id, title, description, specifications, quantity, price, image_url, owner_id, category_id, created_at, updated_at`

type ProductsRepo struct {
	pool *pgxpool.Pool
}

func NewProductsRepo(pool *pgxpool.Pool) *ProductsRepo {
	return &ProductsRepo{pool: pool}
}

func (r *ProductsRepo) Create(ctx context.Context, p product.Product) (product.Product, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Title, p.Description, p.Specifications, p.Quantity, p.Price, p.ImageURL, p.OwnerID, p.CategoryID, p.CreatedAt, p.UpdatedAt,
	)

	if err != nil {
		return product.Product{}, err
	}

	return p, nil
}

func (r *ProductsRepo) GetByID(ctx context.Context, id string) (product.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, ErrProductNotFound
		}

		return product.Product{}, err
	}

	return p, nil
}

func (r *ProductsRepo) List(ctx context.Context) ([]product.Product, error) {
	return r.listWhere(ctx, ``)
}

func (r *ProductsRepo) ListByOwner(ctx context.Context, ownerID string) ([]product.Product, error) {
	return r.listWhere(ctx, `WHERE owner_id = $1`, ownerID)
}

func (r *ProductsRepo) listWhere(ctx context.Context, cond string, args ...any) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products `+cond+` ORDER BY created_at DESC, id`, args...)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	output := make([]product.Product, 0)

	for rows.Next() {
		p, err := scanProduct(rows)

		if err != nil {
			return nil, err
		}

		output = append(output, p)
	}

	return output, rows.Err()
}

// ListByCategory joins products with their owner and category, projecting
// the browse fields for the category page.
func (r *ProductsRepo) ListByCategory(ctx context.Context, categoryID string) ([]product.CategoryProduct, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id,
		        p.title,
		        p.description,
		        p.specifications,
		        p.quantity,
		        p.image_url,
		        u.fullname,
		        u.email,
		        c.name
		 FROM products p
		 JOIN users u ON u.id = p.owner_id
		 JOIN categories c ON c.id = p.category_id
		 WHERE p.category_id = $1
		 ORDER BY p.created_at DESC, p.id`,
		categoryID,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	output := make([]product.CategoryProduct, 0)

	for rows.Next() {
		var cp product.CategoryProduct

		err = rows.Scan(
			&cp.ID,
			&cp.Title,
			&cp.Description,
			&cp.Specifications,
			&cp.Quantity,
			&cp.ImageURL,
			&cp.OwnerName,
			&cp.OwnerEmail,
			&cp.CategoryName,
		)

		if err != nil {
			return nil, err
		}

		output = append(output, cp)
	}

	return output, rows.Err()
}

func scanProduct(row pgx.Row) (product.Product, error) {
	var p product.Product

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Specifications,
		&p.Quantity,
		&p.Price,
		&p.ImageURL,
		&p.OwnerID,
		&p.CategoryID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}
