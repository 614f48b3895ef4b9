// Package employee describes the staff who manage orders and change partner
// ratings.
package employee

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a referenced employee does not exist.
var ErrNotFound = errors.New("employee not found")

// DefaultPosition is assigned to employees seeded without a position.
const DefaultPosition = "Manager"

// Employee is a staff member.
type Employee struct {
	ID       int64
	FullName string
	Position string
}

// Repository reads employees.
type Repository interface {
	// GetEmployee returns ErrNotFound when no employee has the given id.
	GetEmployee(ctx context.Context, id int64) (*Employee, error)
	// ListEmployees returns every employee ordered by full name.
	ListEmployees(ctx context.Context) ([]Employee, error)
}
