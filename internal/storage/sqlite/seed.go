package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
	"github.com/xenking/masterpol/internal/seed"
)

var _ seed.Target = (*Seeder)(nil)

// Seeder writes master data into SQLite.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder returns a Seeder that uses the given database.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Seed upserts the whole dataset in a single transaction.
func (s *Seeder) Seed(ctx context.Context, ds *seed.Dataset) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return seed.Apply(ctx, seedWriter{db: tx}, ds)
	})
}

type seedWriter struct {
	db *gorm.DB
}

func (w seedWriter) upsert(ctx context.Context, what string, id int64, model any) error {
	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error
	if err != nil {
		return fmt.Errorf("upserting %s %d: %w", what, id, err)
	}
	return nil
}

func (w seedWriter) UpsertPartner(ctx context.Context, p partner.Partner) error {
	return w.upsert(ctx, "partner", p.ID, &partnerModel{
		ID:           p.ID,
		PartnerType:  p.Type,
		CompanyName:  p.CompanyName,
		LegalAddress: p.LegalAddress,
		INN:          p.INN,
		DirectorName: p.DirectorName,
		Email:        p.Email,
		Phone:        p.Phone,
		Rating:       p.Rating,
	})
}

func (w seedWriter) UpsertProduct(ctx context.Context, p product.Product) error {
	return w.upsert(ctx, "product", p.ID, &productModel{
		ID:              p.ID,
		ProductType:     p.Type,
		Name:            p.Name,
		Article:         p.Article,
		MinPartnerPrice: p.Price,
	})
}

func (w seedWriter) UpsertEmployee(ctx context.Context, e seed.Employee) error {
	return w.upsert(ctx, "employee", e.ID, &employeeModel{
		ID:       e.ID,
		FullName: e.FullName,
		Position: e.Position,
	})
}

func (w seedWriter) UpsertSale(ctx context.Context, s seed.Sale) error {
	return w.upsert(ctx, "sale", s.ID, &saleModel{
		ID:          s.ID,
		PartnerID:   s.PartnerID,
		ProductID:   s.ProductID,
		Quantity:    s.Quantity,
		SaleDate:    s.SoldAt.UTC(),
		TotalAmount: s.Amount,
	})
}
