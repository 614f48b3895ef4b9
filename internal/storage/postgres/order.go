package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/order"
	"github.com/xenking/masterpol/internal/domain/partner"
)

const (
	orderColumns = `id::TEXT, partner_id, manager_id, created_at, items, status,
		subtotal, discount_rate, discount_amount, total,
		prepayment_received, prepayment_date, full_payment_received, full_payment_date,
		delivery_method, production_date, completion_date, notes, version`

	insertOrderSQL = `INSERT INTO orders (id, partner_id, manager_id, created_at, items, status,
		subtotal, discount_rate, discount_amount, total,
		prepayment_received, prepayment_date, full_payment_received, full_payment_date,
		delivery_method, production_date, completion_date, notes, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1::UUID`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE $1::TEXT IS NULL OR status = $1
		ORDER BY created_at DESC, id`

	updateOrderStatusSQL = `UPDATE orders SET
		status = $3,
		prepayment_received = COALESCE($4::BOOLEAN, prepayment_received),
		prepayment_date = COALESCE($5::TIMESTAMPTZ, prepayment_date),
		full_payment_received = COALESCE($6::BOOLEAN, full_payment_received),
		full_payment_date = COALESCE($7::TIMESTAMPTZ, full_payment_date),
		production_date = COALESCE($8::TIMESTAMPTZ, production_date),
		completion_date = COALESCE($9::TIMESTAMPTZ, completion_date),
		notes = COALESCE($10::TEXT, notes),
		version = version + 1
		WHERE id = $1::UUID AND version = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1::UUID)`

	partnerSalesSummarySQL = `SELECT p.id,
		COALESCE(SUM(s.quantity), 0)::BIGINT,
		COALESCE(SUM(s.total_amount), 0),
		COUNT(DISTINCT s.product_id)::INTEGER
		FROM partners p
		LEFT JOIN sales_history s ON s.partner_id = p.id
		WHERE p.id = $1
		GROUP BY p.id`
)

var _ order.Ledger = (*OrderRepository)(nil)

// OrderRepository implements order.Ledger backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, q: pool}
}

// InTx runs fn against a repository bound to one read-committed transaction.
// Calling InTx on a repository that is already bound reuses its transaction.
func (r *OrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Store) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &OrderRepository{q: tx})
	})
}

// GetPartnerSalesSummary aggregates the partner's sales history. A partner
// without sales gets a zero summary.
func (r *OrderRepository) GetPartnerSalesSummary(ctx context.Context, partnerID int64) (*partner.SalesSummary, error) {
	return partnerSalesSummary(ctx, r.q, partnerID)
}

func partnerSalesSummary(ctx context.Context, q querier, partnerID int64) (*partner.SalesSummary, error) {
	var s partner.SalesSummary
	err := q.QueryRow(ctx, partnerSalesSummarySQL, partnerID).Scan(
		&s.PartnerID, &s.TotalQuantity, &s.TotalAmount, &s.UniqueProducts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, partner.ErrNotFound
		}
		return nil, fmt.Errorf("aggregating sales for partner %d: %w", partnerID, err)
	}
	return &s, nil
}

// GetEmployee returns the employee with the given id or employee.ErrNotFound.
func (r *OrderRepository) GetEmployee(ctx context.Context, id int64) (*employee.Employee, error) {
	return getEmployee(ctx, r.q, id)
}

// InsertOrder persists a new order. The order items are serialized to JSON
// for storage in the JSONB column.
func (r *OrderRepository) InsertOrder(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.q.Exec(ctx, insertOrderSQL,
		o.ID, o.PartnerID, o.ManagerID, o.CreatedAt, itemsJSON, string(o.Status),
		o.Subtotal, o.DiscountRate, o.DiscountAmount, o.Total,
		o.PrepaymentReceived, o.PrepaymentAt, o.FullPaymentReceived, o.FullPaymentAt,
		o.DeliveryMethod, o.ProductionStartedAt, o.CompletedAt, o.Notes, o.Version,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// GetOrder returns the order with the given id or order.ErrNotFound.
func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	if !validID(id) {
		return nil, order.ErrNotFound
	}
	rows, err := r.q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateOrderStatus applies a transition if the stored version matches.
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id string, version int64, status order.Status, e order.Effects) error {
	if !validID(id) {
		return order.ErrNotFound
	}
	tag, err := r.q.Exec(ctx, updateOrderStatusSQL,
		id, version, string(status),
		e.PrepaymentReceived, e.PrepaymentAt,
		e.FullPaymentReceived, e.FullPaymentAt,
		e.ProductionStartedAt, e.CompletedAt, e.Notes,
	)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrConcurrentModification
}

// ListOrders returns orders newest first, optionally filtered by status.
func (r *OrderRepository) ListOrders(ctx context.Context, status *order.Status) ([]order.Order, error) {
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}

	rows, err := r.q.Query(ctx, listOrdersSQL, filter)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// validID reports whether id can be stored in a UUID column.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		status    string
		createdAt time.Time
	)
	err := row.Scan(
		&o.ID, &o.PartnerID, &o.ManagerID, &createdAt, &itemsJSON, &status,
		&o.Subtotal, &o.DiscountRate, &o.DiscountAmount, &o.Total,
		&o.PrepaymentReceived, &o.PrepaymentAt, &o.FullPaymentReceived, &o.FullPaymentAt,
		&o.DeliveryMethod, &o.ProductionStartedAt, &o.CompletedAt, &o.Notes, &o.Version,
	)
	if err != nil {
		return o, err
	}

	o.CreatedAt = createdAt.UTC()
	o.Status = order.Status(status)
	if !o.Status.Valid() {
		return o, fmt.Errorf("order %q has unknown status %q", o.ID, status)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	return o, nil
}
