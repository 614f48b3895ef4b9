package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// DefaultTopLimit is the number of entries returned by a top-selling report
// when the caller does not ask for a specific size.
const DefaultTopLimit = 10

// Product is a catalog item sold to partners.
type Product struct {
	ID      int64
	Type    string
	Name    string
	Article string
	// Price is the minimum price for partners; it is captured into order
	// line items when they are added.
	Price decimal.Decimal
}

// TopSelling is one row of the best-sellers report built from sales history.
type TopSelling struct {
	ProductID    int64
	Name         string
	Type         string
	QuantitySold int64
	Revenue      decimal.Decimal
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	// TopSelling returns products ordered by quantity sold, descending.
	TopSelling(ctx context.Context, limit int) ([]TopSelling, error)
}
