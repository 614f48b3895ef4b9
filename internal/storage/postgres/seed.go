package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
	"github.com/xenking/masterpol/internal/seed"
)

const (
	upsertPartnerSQL = `INSERT INTO partners (id, partner_type, company_name, legal_address, inn,
		director_name, email, phone, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			partner_type = EXCLUDED.partner_type,
			company_name = EXCLUDED.company_name,
			legal_address = EXCLUDED.legal_address,
			inn = EXCLUDED.inn,
			director_name = EXCLUDED.director_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			rating = EXCLUDED.rating`

	upsertProductSQL = `INSERT INTO products (id, product_type, name, article, min_partner_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			product_type = EXCLUDED.product_type,
			name = EXCLUDED.name,
			article = EXCLUDED.article,
			min_partner_price = EXCLUDED.min_partner_price`

	upsertEmployeeSQL = `INSERT INTO employees (id, full_name, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			position = EXCLUDED.position`

	upsertSaleSQL = `INSERT INTO sales_history (id, partner_id, product_id, quantity, sale_date, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			partner_id = EXCLUDED.partner_id,
			product_id = EXCLUDED.product_id,
			quantity = EXCLUDED.quantity,
			sale_date = EXCLUDED.sale_date,
			total_amount = EXCLUDED.total_amount`
)

var _ seed.Target = (*Seeder)(nil)

// Seeder writes master data into PostgreSQL.
type Seeder struct {
	pool *pgxpool.Pool
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// Seed upserts the whole dataset in a single transaction.
func (s *Seeder) Seed(ctx context.Context, ds *seed.Dataset) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		return seed.Apply(ctx, seedWriter{q: tx}, ds)
	})
}

type seedWriter struct {
	q querier
}

func (w seedWriter) UpsertPartner(ctx context.Context, p partner.Partner) error {
	_, err := w.q.Exec(ctx, upsertPartnerSQL,
		p.ID, p.Type, p.CompanyName, p.LegalAddress, p.INN,
		p.DirectorName, p.Email, p.Phone, p.Rating,
	)
	if err != nil {
		return fmt.Errorf("upserting partner %d: %w", p.ID, err)
	}
	return nil
}

func (w seedWriter) UpsertProduct(ctx context.Context, p product.Product) error {
	_, err := w.q.Exec(ctx, upsertProductSQL, p.ID, p.Type, p.Name, p.Article, p.Price)
	if err != nil {
		return fmt.Errorf("upserting product %d: %w", p.ID, err)
	}
	return nil
}

func (w seedWriter) UpsertEmployee(ctx context.Context, e seed.Employee) error {
	_, err := w.q.Exec(ctx, upsertEmployeeSQL, e.ID, e.FullName, e.Position)
	if err != nil {
		return fmt.Errorf("upserting employee %d: %w", e.ID, err)
	}
	return nil
}

func (w seedWriter) UpsertSale(ctx context.Context, s seed.Sale) error {
	_, err := w.q.Exec(ctx, upsertSaleSQL, s.ID, s.PartnerID, s.ProductID, s.Quantity, s.SoldAt, s.Amount)
	if err != nil {
		return fmt.Errorf("upserting sale %d: %w", s.ID, err)
	}
	return nil
}
