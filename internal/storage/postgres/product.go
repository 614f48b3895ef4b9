package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/masterpol/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, product_type, name, article, min_partner_price
		FROM products ORDER BY id`

	getProductsByIDsSQL = `SELECT id, product_type, name, article, min_partner_price
		FROM products WHERE id = ANY($1)`

	topSellingProductsSQL = `SELECT p.id, p.name, p.product_type,
		SUM(s.quantity)::BIGINT AS total_sold,
		COALESCE(SUM(s.total_amount), 0) AS total_revenue
		FROM sales_history s
		JOIN products p ON p.id = s.product_id
		GROUP BY p.id
		ORDER BY total_sold DESC, p.id
		LIMIT $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByIDs returns products matching any of the given IDs. Unknown IDs are
// silently absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// TopSelling returns the best-selling products by quantity. A non-positive
// limit falls back to product.DefaultTopLimit.
func (r *ProductRepository) TopSelling(ctx context.Context, limit int) ([]product.TopSelling, error) {
	if limit <= 0 {
		limit = product.DefaultTopLimit
	}
	rows, err := r.pool.Query(ctx, topSellingProductsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing top selling products: %w", err)
	}
	top, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.TopSelling, error) {
		var t product.TopSelling
		err := row.Scan(&t.ProductID, &t.Name, &t.Type, &t.QuantitySold, &t.Revenue)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing top selling products: %w", err)
	}
	return top, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Type, &p.Name, &p.Article, &price)
	p.Price = price
	return p, err
}
