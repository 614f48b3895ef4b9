// Package seed loads ledger master data from JSON files and writes it to a
// store.
package seed

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
)

// Employee is a staff member who can manage orders and change ratings.
type Employee = employee.Employee

// Sale is one historical sale of a product to a partner. Sales feed the
// partner discount and the top-selling report.
type Sale struct {
	ID        int64
	PartnerID int64
	ProductID int64
	Quantity  int
	SoldAt    time.Time
	Amount    decimal.Decimal
}

// Dataset is the master data to seed.
type Dataset struct {
	Partners  []partner.Partner
	Products  []product.Product
	Employees []Employee
	Sales     []Sale
}

// Writer upserts seed records by id.
type Writer interface {
	UpsertPartner(ctx context.Context, p partner.Partner) error
	UpsertProduct(ctx context.Context, p product.Product) error
	UpsertEmployee(ctx context.Context, e Employee) error
	UpsertSale(ctx context.Context, s Sale) error
}

// Target is a store that can apply a whole dataset atomically.
type Target interface {
	Seed(ctx context.Context, ds *Dataset) error
}

// Apply writes the dataset in reference order: partners, products and
// employees before the sales that point at them.
func Apply(ctx context.Context, w Writer, ds *Dataset) error {
	for _, p := range ds.Partners {
		if err := w.UpsertPartner(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert partner %d", p.ID)
		}
	}
	for _, p := range ds.Products {
		if err := w.UpsertProduct(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}
	}
	for _, e := range ds.Employees {
		if err := w.UpsertEmployee(ctx, e); err != nil {
			return errors.Wrapf(err, "upsert employee %d", e.ID)
		}
	}
	for _, s := range ds.Sales {
		if err := w.UpsertSale(ctx, s); err != nil {
			return errors.Wrapf(err, "upsert sale %d", s.ID)
		}
	}
	return nil
}
