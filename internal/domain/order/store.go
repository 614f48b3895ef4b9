package order

import (
	"context"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/partner"
)

// Store is the persistence surface the order lifecycle depends on.
type Store interface {
	// GetPartnerSalesSummary aggregates the partner's sales history.
	// Returns partner.ErrNotFound for unknown partners.
	GetPartnerSalesSummary(ctx context.Context, partnerID int64) (*partner.SalesSummary, error)
	// GetEmployee returns employee.ErrNotFound for unknown ids.
	GetEmployee(ctx context.Context, id int64) (*employee.Employee, error)
	InsertOrder(ctx context.Context, o *Order) error
	// GetOrder returns ErrNotFound when no order has the given id.
	GetOrder(ctx context.Context, id string) (*Order, error)
	// UpdateOrderStatus persists a transition if the stored version still
	// equals version, and bumps it. Returns ErrConcurrentModification on a
	// version mismatch and ErrNotFound for unknown orders.
	UpdateOrderStatus(ctx context.Context, id string, version int64, status Status, e Effects) error
	// ListOrders returns orders newest first, optionally filtered by status.
	ListOrders(ctx context.Context, status *Status) ([]Order, error)
}

// Ledger is a Store that can group operations into a transaction.
type Ledger interface {
	Store
	// InTx runs fn against a store bound to one read-committed transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
