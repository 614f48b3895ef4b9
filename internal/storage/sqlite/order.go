package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/order"
	"github.com/xenking/masterpol/internal/domain/partner"
)

var _ order.Ledger = (*OrderRepository)(nil)

// OrderRepository implements order.Ledger on SQLite.
type OrderRepository struct {
	db    *gorm.DB
	bound bool
}

// NewOrderRepository returns an OrderRepository that uses the given database.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// InTx runs fn against a repository bound to one transaction. Calling InTx on
// a bound repository reuses its transaction.
func (r *OrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Store) error) error {
	if r.bound {
		return fn(ctx, r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &OrderRepository{db: tx, bound: true})
	})
}

// GetPartnerSalesSummary aggregates the partner's sales history.
func (r *OrderRepository) GetPartnerSalesSummary(ctx context.Context, partnerID int64) (*partner.SalesSummary, error) {
	return partnerSalesSummary(ctx, r.db, partnerID)
}

// partnerSalesSummary sums amounts in Go so decimal precision survives the
// text storage of money columns.
func partnerSalesSummary(ctx context.Context, db *gorm.DB, partnerID int64) (*partner.SalesSummary, error) {
	var exists int64
	if err := db.WithContext(ctx).Model(&partnerModel{}).Where("id = ?", partnerID).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("checking partner %d: %w", partnerID, err)
	}
	if exists == 0 {
		return nil, partner.ErrNotFound
	}

	var sales []saleModel
	if err := db.WithContext(ctx).Where("partner_id = ?", partnerID).Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("aggregating sales for partner %d: %w", partnerID, err)
	}

	s := &partner.SalesSummary{PartnerID: partnerID, TotalAmount: decimal.Zero}
	products := make(map[int64]struct{})
	for _, sale := range sales {
		s.TotalQuantity += int64(sale.Quantity)
		s.TotalAmount = s.TotalAmount.Add(sale.TotalAmount)
		products[sale.ProductID] = struct{}{}
	}
	s.UniqueProducts = len(products)
	return s, nil
}

// GetEmployee returns the employee with the given id or employee.ErrNotFound.
func (r *OrderRepository) GetEmployee(ctx context.Context, id int64) (*employee.Employee, error) {
	return getEmployee(ctx, r.db, id)
}

// InsertOrder persists a new order with its items encoded as JSON text.
func (r *OrderRepository) InsertOrder(ctx context.Context, o *order.Order) error {
	m, err := toOrderModel(o)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetOrder returns the order with the given id or order.ErrNotFound.
func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	var m orderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := fromOrderModel(m)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatus applies a transition if the stored version matches.
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id string, version int64, status order.Status, e order.Effects) error {
	updates := map[string]any{
		"status":  string(status),
		"version": gorm.Expr("version + 1"),
	}
	if e.PrepaymentReceived != nil {
		updates["prepayment_received"] = *e.PrepaymentReceived
	}
	if e.PrepaymentAt != nil {
		updates["prepayment_date"] = e.PrepaymentAt.UTC()
	}
	if e.FullPaymentReceived != nil {
		updates["full_payment_received"] = *e.FullPaymentReceived
	}
	if e.FullPaymentAt != nil {
		updates["full_payment_date"] = e.FullPaymentAt.UTC()
	}
	if e.ProductionStartedAt != nil {
		updates["production_date"] = e.ProductionStartedAt.UTC()
	}
	if e.CompletedAt != nil {
		updates["completion_date"] = e.CompletedAt.UTC()
	}
	if e.Notes != nil {
		updates["notes"] = *e.Notes
	}

	res := r.db.WithContext(ctx).Model(&orderModel{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating order %q status: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&orderModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if n == 0 {
		return order.ErrNotFound
	}
	return order.ErrConcurrentModification
}

// ListOrders returns orders newest first, optionally filtered by status.
func (r *OrderRepository) ListOrders(ctx context.Context, status *order.Status) ([]order.Order, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}

	var models []orderModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders := make([]order.Order, 0, len(models))
	for _, m := range models {
		o, err := fromOrderModel(m)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func toOrderModel(o *order.Order) (orderModel, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return orderModel{}, fmt.Errorf("marshaling order items: %w", err)
	}
	return orderModel{
		ID:                  o.ID,
		PartnerID:           o.PartnerID,
		ManagerID:           o.ManagerID,
		CreatedAt:           o.CreatedAt.UTC(),
		Items:               string(items),
		Status:              string(o.Status),
		Subtotal:            o.Subtotal,
		DiscountRate:        o.DiscountRate,
		DiscountAmount:      o.DiscountAmount,
		Total:               o.Total,
		PrepaymentReceived:  o.PrepaymentReceived,
		PrepaymentDate:      utcPtr(o.PrepaymentAt),
		FullPaymentReceived: o.FullPaymentReceived,
		FullPaymentDate:     utcPtr(o.FullPaymentAt),
		DeliveryMethod:      o.DeliveryMethod,
		ProductionDate:      utcPtr(o.ProductionStartedAt),
		CompletionDate:      utcPtr(o.CompletedAt),
		Notes:               o.Notes,
		Version:             o.Version,
	}, nil
}

func fromOrderModel(m orderModel) (order.Order, error) {
	o := order.Order{
		ID:                  m.ID,
		PartnerID:           m.PartnerID,
		ManagerID:           m.ManagerID,
		CreatedAt:           m.CreatedAt.UTC(),
		Status:              order.Status(m.Status),
		Subtotal:            m.Subtotal,
		DiscountRate:        m.DiscountRate,
		DiscountAmount:      m.DiscountAmount,
		Total:               m.Total,
		PrepaymentReceived:  m.PrepaymentReceived,
		PrepaymentAt:        utcPtr(m.PrepaymentDate),
		FullPaymentReceived: m.FullPaymentReceived,
		FullPaymentAt:       utcPtr(m.FullPaymentDate),
		DeliveryMethod:      m.DeliveryMethod,
		ProductionStartedAt: utcPtr(m.ProductionDate),
		CompletedAt:         utcPtr(m.CompletionDate),
		Notes:               m.Notes,
		Version:             m.Version,
	}
	if !o.Status.Valid() {
		return o, fmt.Errorf("order %q has unknown status %q", m.ID, m.Status)
	}
	if err := json.Unmarshal([]byte(m.Items), &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", m.ID, err)
	}
	return o, nil
}
