package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/masterpol/internal/domain/employee"
)

const (
	getEmployeeSQL = `SELECT id, full_name, position FROM employees WHERE id = $1`

	listEmployeesSQL = `SELECT id, full_name, position FROM employees ORDER BY full_name, id`
)

var _ employee.Repository = (*EmployeeRepository)(nil)

// EmployeeRepository implements employee.Repository backed by PostgreSQL.
type EmployeeRepository struct {
	q querier
}

// NewEmployeeRepository returns an EmployeeRepository that uses the given pool.
func NewEmployeeRepository(pool *pgxpool.Pool) *EmployeeRepository {
	return &EmployeeRepository{q: pool}
}

// GetEmployee returns a single employee by id.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, id int64) (*employee.Employee, error) {
	return getEmployee(ctx, r.q, id)
}

// ListEmployees returns every employee ordered by full name.
func (r *EmployeeRepository) ListEmployees(ctx context.Context) ([]employee.Employee, error) {
	rows, err := r.q.Query(ctx, listEmployeesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	employees, err := pgx.CollectRows(rows, scanEmployee)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	return employees, nil
}

func getEmployee(ctx context.Context, q querier, id int64) (*employee.Employee, error) {
	rows, err := q.Query(ctx, getEmployeeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting employee %d: %w", id, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEmployee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrNotFound
		}
		return nil, fmt.Errorf("getting employee %d: %w", id, err)
	}
	return &e, nil
}

func scanEmployee(row pgx.CollectableRow) (employee.Employee, error) {
	var e employee.Employee
	err := row.Scan(&e.ID, &e.FullName, &e.Position)
	return e, err
}
