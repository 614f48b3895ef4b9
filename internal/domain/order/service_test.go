package order

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[int64]product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return slices.Collect(maps.Values(m.byID)), nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) TopSelling(_ context.Context, _ int) ([]product.TopSelling, error) {
	return nil, nil
}

type mockLedger struct {
	mu        sync.Mutex
	summaries map[int64]decimal.Decimal
	employees map[int64]bool
	orders    map[string]*Order

	insertErr    error
	updateErr    error
	beforeUpdate func(m *mockLedger, id string)
}

func newLedger() *mockLedger {
	return &mockLedger{
		summaries: map[int64]decimal.Decimal{},
		employees: map[int64]bool{7: true},
		orders:    map[string]*Order{},
	}
}

func (m *mockLedger) GetPartnerSalesSummary(_ context.Context, partnerID int64) (*partner.SalesSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total, ok := m.summaries[partnerID]
	if !ok {
		return nil, partner.ErrNotFound
	}
	return &partner.SalesSummary{PartnerID: partnerID, TotalAmount: total}, nil
}

func (m *mockLedger) InsertOrder(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockLedger) GetOrder(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockLedger) UpdateOrderStatus(_ context.Context, id string, version int64, status Status, e Effects) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(m, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Version != version {
		return ErrConcurrentModification
	}
	o.Apply(status, e)
	o.Version++
	return nil
}

func (m *mockLedger) ListOrders(_ context.Context, status *Status) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	slices.SortFunc(out, func(a, b Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *mockLedger) GetEmployee(_ context.Context, id int64) (*employee.Employee, error) {
	if !m.employees[id] {
		return nil, employee.ErrNotFound
	}
	return &employee.Employee{ID: id, FullName: "Manager", Position: employee.DefaultPosition}, nil
}

func (m *mockLedger) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	snapshot := maps.Clone(m.orders)
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.orders = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// forceStatus changes a stored order behind the service's back.
func (m *mockLedger) forceStatus(id string, s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id].Status = s
	m.orders[id].Version++
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

// --- Helpers ---

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

func newTestProduct(id int64, price string) product.Product {
	return product.Product{
		ID:      id,
		Type:    "Laminate",
		Name:    fmt.Sprintf("Product %d", id),
		Article: fmt.Sprintf("ART-%03d", id),
		Price:   decimal.RequireFromString(price),
	}
}

func newTestService(products *mockProductRepo, ledger *mockLedger, opts ...Option) *Service {
	svc := NewService(products, ledger, opts...)
	svc.now = func() time.Time { return testNow }
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("order-%d", seq)
	}
	return svc
}

// seedOrder creates an order for partner 1 and returns it.
func seedOrder(t *testing.T, svc *Service, ledger *mockLedger) *Order {
	t.Helper()
	if _, ok := ledger.summaries[1]; !ok {
		ledger.summaries[1] = decimal.Zero
	}
	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerID: 1,
		Items:     []ItemRequest{{ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	return o
}

// --- CreateOrder ---

func TestCreateOrder_Validation(t *testing.T) {
	products := newProductRepo(newTestProduct(1, "100.00"))

	tests := []struct {
		name  string
		items []ItemRequest
		check func(t *testing.T, err error)
	}{
		{
			name:  "empty items",
			items: nil,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrEmptyItems)
			},
		},
		{
			name:  "zero quantity",
			items: []ItemRequest{{ProductID: 1, Quantity: 0}},
			check: func(t *testing.T, err error) {
				var iqErr *InvalidQuantityError
				require.ErrorAs(t, err, &iqErr)
				assert.Equal(t, int64(1), iqErr.ProductID)
				assert.ErrorIs(t, err, ErrInvalidQuantity)
			},
		},
		{
			name:  "negative quantity",
			items: []ItemRequest{{ProductID: 1, Quantity: 3}, {ProductID: 1, Quantity: -1}},
			check: func(t *testing.T, err error) {
				var iqErr *InvalidQuantityError
				require.ErrorAs(t, err, &iqErr)
				assert.Equal(t, -1, iqErr.Quantity)
			},
		},
		{
			name:  "unknown product",
			items: []ItemRequest{{ProductID: 1, Quantity: 1}, {ProductID: 42, Quantity: 1}},
			check: func(t *testing.T, err error) {
				var pnfErr *ProductNotFoundError
				require.ErrorAs(t, err, &pnfErr)
				assert.Equal(t, int64(42), pnfErr.ProductID)
				assert.ErrorIs(t, err, product.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newLedger()
			ledger.summaries[1] = decimal.Zero
			svc := newTestService(products, ledger)

			_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{PartnerID: 1, Items: tt.items})
			tt.check(t, err)
			assert.Empty(t, ledger.orders)
		})
	}
}

func TestCreateOrder_UnknownPartner(t *testing.T) {
	ledger := newLedger()
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerID: 99,
		Items:     []ItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, partner.ErrNotFound)
	assert.NotErrorIs(t, err, ErrPersistence)
	assert.Empty(t, ledger.orders)
}

func TestCreateOrder_AppliesPartnerDiscount(t *testing.T) {
	ledger := newLedger()
	ledger.summaries[1] = decimal.NewFromInt(6_000_000)
	manager := int64(7)
	svc := newTestService(newProductRepo(newTestProduct(1, "1000.00")), ledger)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerID:      1,
		ManagerID:      &manager,
		Items:          []ItemRequest{{ProductID: 1, Quantity: 10}},
		DeliveryMethod: "pickup",
	})
	require.NoError(t, err)

	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, StatusCreated, o.Status)
	assert.Equal(t, testNow, o.CreatedAt)
	assert.Equal(t, int64(1), o.Version)
	assert.Equal(t, &manager, o.ManagerID)
	assert.Equal(t, "pickup", o.DeliveryMethod)
	assert.False(t, o.PrepaymentReceived)
	assert.False(t, o.FullPaymentReceived)

	assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(10000)), "subtotal: %s", o.Subtotal)
	assert.True(t, o.DiscountRate.Equal(decimal.RequireFromString("0.10")), "rate: %s", o.DiscountRate)
	assert.True(t, o.DiscountAmount.Equal(decimal.NewFromInt(1000)), "discount: %s", o.DiscountAmount)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(9000)), "total: %s", o.Total)

	require.Len(t, o.Items, 1)
	assert.Equal(t, "ART-001", o.Items[0].Article)
	assert.True(t, o.Items[0].LineTotal.Equal(decimal.NewFromInt(10000)))

	stored, err := svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, stored)
}

func TestCreateOrder_UnknownManager(t *testing.T) {
	ledger := newLedger()
	ledger.summaries[1] = decimal.Zero
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)
	ghost := int64(999)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerID: 1,
		ManagerID: &ghost,
		Items:     []ItemRequest{{ProductID: 1, Quantity: 1}},
	})
	var mnfErr *ManagerNotFoundError
	require.ErrorAs(t, err, &mnfErr)
	assert.Equal(t, ghost, mnfErr.ManagerID)
	assert.ErrorIs(t, err, employee.ErrNotFound)
	assert.NotErrorIs(t, err, ErrPersistence)
	assert.Empty(t, ledger.orders)
}

func TestCreateOrder_TimestampsAtMicrosecondPrecision(t *testing.T) {
	ledger := newLedger()
	ledger.summaries[1] = decimal.Zero
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)
	svc.now = func() time.Time { return testNow.Add(123456789 * time.Nanosecond) }

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerID: 1,
		Items:     []ItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(123456*time.Microsecond), o.CreatedAt)

	paid, err := svc.Transition(context.Background(), o.ID, StatusPrepaymentReceived, "")
	require.NoError(t, err)
	require.NotNil(t, paid.PrepaymentAt)
	assert.Zero(t, paid.PrepaymentAt.Nanosecond()%1000)
}

func TestCreateOrder_NewPartnerGetsFloorRate(t *testing.T) {
	ledger := newLedger()
	ledger.summaries[1] = decimal.Zero
	svc := newTestService(newProductRepo(newTestProduct(1, "50.00"), newTestProduct(2, "25.50")), ledger)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerID: 1,
		Items:     []ItemRequest{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 4}},
	})
	require.NoError(t, err)

	// 2*50 + 4*25.50 = 202, 2% off
	assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(202)))
	assert.True(t, o.DiscountRate.Equal(decimal.RequireFromString("0.02")))
	assert.True(t, o.Total.Equal(decimal.RequireFromString("197.96")), "total: %s", o.Total)
}

func TestCreateOrder_StoreFailure(t *testing.T) {
	ledger := newLedger()
	ledger.summaries[1] = decimal.Zero
	ledger.insertErr = errors.New("connection reset")
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerID: 1,
		Items:     []ItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrPersistence)

	var pErr *PersistenceError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "insert order", pErr.Op)
	assert.Empty(t, ledger.orders)
}

func TestCreateOrder_ProductLookupFailure(t *testing.T) {
	products := newProductRepo(newTestProduct(1, "10"))
	products.getErr = errors.New("timeout")
	svc := newTestService(products, newLedger())

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		PartnerID: 1,
		Items:     []ItemRequest{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestQuote_DoesNotPersist(t *testing.T) {
	ledger := newLedger()
	ledger.summaries[1] = decimal.NewFromInt(1_500_000)
	svc := newTestService(newProductRepo(newTestProduct(1, "200")), ledger)

	q, err := svc.Quote(context.Background(), 1, []ItemRequest{{ProductID: 1, Quantity: 5}})
	require.NoError(t, err)

	assert.True(t, q.Totals.DiscountRate.Equal(decimal.RequireFromString("0.05")))
	assert.True(t, q.Totals.Total.Equal(decimal.NewFromInt(950)), "total: %s", q.Totals.Total)
	assert.Empty(t, ledger.orders)
}

// --- Transition ---

func TestTransition_SideEffects(t *testing.T) {
	tests := []struct {
		name  string
		to    Status
		check func(t *testing.T, o *Order)
	}{
		{
			name: "prepayment",
			to:   StatusPrepaymentReceived,
			check: func(t *testing.T, o *Order) {
				assert.True(t, o.PrepaymentReceived)
				require.NotNil(t, o.PrepaymentAt)
				assert.Equal(t, testNow, *o.PrepaymentAt)
			},
		},
		{
			name: "in production",
			to:   StatusInProduction,
			check: func(t *testing.T, o *Order) {
				require.NotNil(t, o.ProductionStartedAt)
				assert.Equal(t, testNow, *o.ProductionStartedAt)
				assert.Nil(t, o.CompletedAt)
			},
		},
		{
			name: "ready",
			to:   StatusReady,
			check: func(t *testing.T, o *Order) {
				require.NotNil(t, o.CompletedAt)
				assert.False(t, o.FullPaymentReceived)
			},
		},
		{
			name: "completed",
			to:   StatusCompleted,
			check: func(t *testing.T, o *Order) {
				assert.True(t, o.FullPaymentReceived)
				require.NotNil(t, o.FullPaymentAt)
				require.NotNil(t, o.CompletedAt)
				assert.Equal(t, testNow, *o.FullPaymentAt)
			},
		},
		{
			name: "cancelled",
			to:   StatusCancelled,
			check: func(t *testing.T, o *Order) {
				assert.False(t, o.PrepaymentReceived)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newLedger()
			svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)
			created := seedOrder(t, svc, ledger)

			o, err := svc.Transition(context.Background(), created.ID, tt.to, "")
			require.NoError(t, err)
			assert.Equal(t, tt.to, o.Status)
			assert.Equal(t, int64(2), o.Version)
			assert.True(t, o.Total.Equal(created.Total), "totals must not change")
			tt.check(t, o)

			stored, err := svc.GetOrder(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, o, stored)
		})
	}
}

func TestTransition_PrepaymentThenCancel(t *testing.T) {
	ledger := newLedger()
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)
	o := seedOrder(t, svc, ledger)

	o, err := svc.Transition(context.Background(), o.ID, StatusPrepaymentReceived, "paid 30%")
	require.NoError(t, err)
	assert.True(t, o.PrepaymentReceived)
	assert.Equal(t, "paid 30%", o.Notes)

	o, err = svc.Transition(context.Background(), o.ID, StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.False(t, o.PrepaymentReceived)
	assert.NotNil(t, o.PrepaymentAt)
	assert.Equal(t, "paid 30%", o.Notes, "empty note keeps existing notes")
}

func TestTransition_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		path   []Status
		to     Status
		target error
	}{
		{name: "from completed", policy: Lenient, path: []Status{StatusCompleted}, to: StatusInProduction, target: ErrInvalidTransition},
		{name: "from cancelled", policy: Lenient, path: []Status{StatusCancelled}, to: StatusPrepaymentReceived, target: ErrInvalidTransition},
		{name: "cancelled twice", policy: Lenient, path: []Status{StatusCancelled}, to: StatusCancelled, target: ErrInvalidTransition},
		{name: "back to created", policy: Lenient, path: []Status{StatusInProduction}, to: StatusCreated, target: ErrInvalidTransition},
		{name: "unknown target", policy: Lenient, to: Status("shipped"), target: ErrUnknownStatus},
		{name: "strict skip", policy: Strict, to: StatusReady, target: ErrInvalidTransition},
		{name: "strict backwards", policy: Strict, path: []Status{StatusInProduction, StatusReady}, to: StatusInProduction, target: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newLedger()
			svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger, WithPolicy(tt.policy))
			o := seedOrder(t, svc, ledger)

			for _, s := range tt.path {
				_, err := svc.Transition(context.Background(), o.ID, s, "")
				require.NoError(t, err)
			}
			before, err := svc.GetOrder(context.Background(), o.ID)
			require.NoError(t, err)

			_, err = svc.Transition(context.Background(), o.ID, tt.to, "note")
			require.ErrorIs(t, err, tt.target)

			after, err := svc.GetOrder(context.Background(), o.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after, "rejected transition must not change the order")
		})
	}
}

func TestTransition_LenientAllowsSkipping(t *testing.T) {
	ledger := newLedger()
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)
	o := seedOrder(t, svc, ledger)

	o, err := svc.Transition(context.Background(), o.ID, StatusReady, "")
	require.NoError(t, err)
	o, err = svc.Transition(context.Background(), o.ID, StatusPrepaymentReceived, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPrepaymentReceived, o.Status)
	assert.Equal(t, int64(3), o.Version)
}

func TestTransition_StrictForwardPath(t *testing.T) {
	ledger := newLedger()
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger, WithPolicy(Strict))
	o := seedOrder(t, svc, ledger)

	for _, s := range []Status{StatusPrepaymentReceived, StatusInProduction, StatusReady, StatusCompleted} {
		var err error
		o, err = svc.Transition(context.Background(), o.ID, s, "")
		require.NoError(t, err, "to %s", s)
	}
	assert.Equal(t, StatusCompleted, o.Status)
	assert.True(t, o.PrepaymentReceived)
	assert.True(t, o.FullPaymentReceived)
}

func TestTransition_NotFound(t *testing.T) {
	svc := newTestService(newProductRepo(), newLedger())

	_, err := svc.Transition(context.Background(), "missing", StatusReady, "")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrPersistence)
}

func TestTransition_ConcurrentModification(t *testing.T) {
	ledger := newLedger()
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)
	o := seedOrder(t, svc, ledger)

	ledger.beforeUpdate = func(m *mockLedger, id string) {
		m.beforeUpdate = nil
		m.forceStatus(id, StatusInProduction)
	}

	_, err := svc.Transition(context.Background(), o.ID, StatusReady, "")
	require.ErrorIs(t, err, ErrConcurrentModification)

	stored, err := svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProduction, stored.Status)
}

func TestTransition_LostRaceToCancellation(t *testing.T) {
	ledger := newLedger()
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)
	o := seedOrder(t, svc, ledger)

	ledger.beforeUpdate = func(m *mockLedger, id string) {
		m.beforeUpdate = nil
		m.forceStatus(id, StatusCancelled)
	}

	_, err := svc.Transition(context.Background(), o.ID, StatusPrepaymentReceived, "")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusCancelled, itErr.From)
	assert.Equal(t, StatusPrepaymentReceived, itErr.To)

	stored, err := svc.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.False(t, stored.PrepaymentReceived)
}

func TestTransition_StoreFailure(t *testing.T) {
	ledger := newLedger()
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)
	o := seedOrder(t, svc, ledger)
	ledger.updateErr = errors.New("disk full")

	_, err := svc.Transition(context.Background(), o.ID, StatusReady, "")
	require.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")
}

// --- Listing ---

func TestListOrders(t *testing.T) {
	ledger := newLedger()
	svc := newTestService(newProductRepo(newTestProduct(1, "10")), ledger)

	first := seedOrder(t, svc, ledger)
	svc.now = func() time.Time { return testNow.Add(time.Hour) }
	second := seedOrder(t, svc, ledger)
	_, err := svc.Transition(context.Background(), first.ID, StatusCancelled, "")
	require.NoError(t, err)

	all, err := svc.ListOrders(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	cancelled := StatusCancelled
	filtered, err := svc.ListOrders(context.Background(), &cancelled)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)

	bogus := Status("archived")
	_, err = svc.ListOrders(context.Background(), &bogus)
	require.ErrorIs(t, err, ErrUnknownStatus)
}
