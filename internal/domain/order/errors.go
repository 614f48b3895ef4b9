package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
)

// Sentinel errors for order validation and lifecycle.
var (
	ErrEmptyItems             = errors.New("items required")
	ErrInvalidQuantity        = errors.New("quantity must be greater than 0")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrUnknownStatus          = errors.New("unknown order status")
	ErrNotFound               = errors.New("order not found")
	ErrPersistence            = errors.New("ledger store failure")
	ErrConcurrentModification = errors.New("order modified concurrently")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d, got %d", e.ProductID, e.Quantity)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return product.ErrNotFound }

// ManagerNotFoundError indicates the order references an unknown employee as
// its manager.
type ManagerNotFoundError struct {
	ManagerID int64
}

func (e *ManagerNotFoundError) Error() string {
	return fmt.Sprintf("manager %d not found", e.ManagerID)
}

func (e *ManagerNotFoundError) Unwrap() error { return employee.ErrNotFound }

// InvalidTransitionError indicates a status change the lifecycle forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// PersistenceError wraps a failure reported by the ledger store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes every PersistenceError match ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// storeErr wraps raw store failures into PersistenceError and passes domain
// errors through untouched.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrNotFound,
		ErrConcurrentModification,
		ErrPersistence,
		ErrInvalidTransition,
		ErrInvalidQuantity,
		ErrUnknownStatus,
		ErrEmptyItems,
		partner.ErrNotFound,
		product.ErrNotFound,
		employee.ErrNotFound,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}
