package sqlite

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xenking/masterpol/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository on SQLite.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository returns a ProductRepository that uses the given database.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	var models []productModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return toProducts(models), nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	var models []productModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return toProducts(models), nil
}

// TopSelling returns the best-selling products by quantity. A non-positive
// limit falls back to product.DefaultTopLimit.
func (r *ProductRepository) TopSelling(ctx context.Context, limit int) ([]product.TopSelling, error) {
	if limit <= 0 {
		limit = product.DefaultTopLimit
	}

	var sales []saleModel
	if err := r.db.WithContext(ctx).Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("listing top selling products: %w", err)
	}

	byProduct := make(map[int64]*product.TopSelling)
	for _, s := range sales {
		t, ok := byProduct[s.ProductID]
		if !ok {
			t = &product.TopSelling{ProductID: s.ProductID, Revenue: decimal.Zero}
			byProduct[s.ProductID] = t
		}
		t.QuantitySold += int64(s.Quantity)
		t.Revenue = t.Revenue.Add(s.TotalAmount)
	}
	if len(byProduct) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(byProduct))
	for id := range byProduct {
		ids = append(ids, id)
	}
	var models []productModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing top selling products: %w", err)
	}

	top := make([]product.TopSelling, 0, len(models))
	for _, m := range models {
		t := byProduct[m.ID]
		t.Name = m.Name
		t.Type = m.ProductType
		top = append(top, *t)
	}
	slices.SortFunc(top, func(a, b product.TopSelling) int {
		if c := cmp.Compare(b.QuantitySold, a.QuantitySold); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func toProducts(models []productModel) []product.Product {
	out := make([]product.Product, 0, len(models))
	for _, m := range models {
		out = append(out, product.Product{
			ID:      m.ID,
			Type:    m.ProductType,
			Name:    m.Name,
			Article: m.Article,
			Price:   m.MinPartnerPrice,
		})
	}
	return out
}
