package sqlite

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/xenking/masterpol/internal/domain/employee"
)

var _ employee.Repository = (*EmployeeRepository)(nil)

// EmployeeRepository implements employee.Repository on SQLite.
type EmployeeRepository struct {
	db *gorm.DB
}

// NewEmployeeRepository returns an EmployeeRepository that uses the given database.
func NewEmployeeRepository(db *gorm.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// GetEmployee returns a single employee by id.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, id int64) (*employee.Employee, error) {
	return getEmployee(ctx, r.db, id)
}

// ListEmployees returns every employee ordered by full name.
func (r *EmployeeRepository) ListEmployees(ctx context.Context) ([]employee.Employee, error) {
	var models []employeeModel
	if err := r.db.WithContext(ctx).Order("full_name").Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	out := make([]employee.Employee, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func getEmployee(ctx context.Context, db *gorm.DB, id int64) (*employee.Employee, error) {
	var m employeeModel
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, employee.ErrNotFound
		}
		return nil, fmt.Errorf("getting employee %d: %w", id, err)
	}
	e := m.toDomain()
	return &e, nil
}

func (m employeeModel) toDomain() employee.Employee {
	return employee.Employee{ID: m.ID, FullName: m.FullName, Position: m.Position}
}
