package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/masterpol/internal/domain/discount"
	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/product"
)

const tracerName = "github.com/xenking/masterpol/internal/domain/order"

// ItemRequest is a product and quantity the caller wants to order.
type ItemRequest struct {
	ProductID int64
	Quantity  int
}

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	PartnerID      int64
	ManagerID      *int64
	Items          []ItemRequest
	DeliveryMethod string
}

// Quote is a priced order preview that has not been persisted.
type Quote struct {
	PartnerID int64
	Items     []LineItem
	Totals    Totals
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the transition policy. The default is Lenient.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithTracerProvider sets the tracer provider used for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// Service implements order pricing, creation and status transitions.
type Service struct {
	products product.Repository
	ledger   Ledger
	policy   Policy
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

// NewService creates an order Service with the required dependencies.
func NewService(products product.Repository, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		products: products,
		ledger:   ledger,
		policy:   Lenient,
		tracer:   noop.NewTracerProvider().Tracer(tracerName),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// timestamp returns the current UTC time at the microsecond precision the
// stores keep.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Policy returns the transition policy in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// Quote prices the requested items for a partner without persisting anything.
func (s *Service) Quote(ctx context.Context, partnerID int64, reqs []ItemRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote", trace.WithAttributes(
		attribute.Int64("partner.id", partnerID),
	))
	defer span.End()

	items, err := s.lineItems(ctx, reqs)
	if err != nil {
		return nil, spanErr(span, err)
	}

	summary, err := s.ledger.GetPartnerSalesSummary(ctx, partnerID)
	if err != nil {
		return nil, spanErr(span, storeErr("get partner sales summary", err))
	}

	totals, err := ComputeTotals(items, discount.ForSummary(*summary))
	if err != nil {
		return nil, spanErr(span, err)
	}

	return &Quote{PartnerID: partnerID, Items: items, Totals: totals}, nil
}

// CreateOrder prices the items with the partner's current discount and
// persists a new order in the created status. The sales summary read and the
// insert share one transaction; on error nothing is stored.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder", trace.WithAttributes(
		attribute.Int64("partner.id", req.PartnerID),
		attribute.Int("items", len(req.Items)),
	))
	defer span.End()

	items, err := s.lineItems(ctx, req.Items)
	if err != nil {
		return nil, spanErr(span, err)
	}

	var created *Order
	err = s.ledger.InTx(ctx, func(ctx context.Context, tx Store) error {
		summary, err := tx.GetPartnerSalesSummary(ctx, req.PartnerID)
		if err != nil {
			return storeErr("get partner sales summary", err)
		}
		if req.ManagerID != nil {
			if _, err := tx.GetEmployee(ctx, *req.ManagerID); err != nil {
				if errors.Is(err, employee.ErrNotFound) {
					return &ManagerNotFoundError{ManagerID: *req.ManagerID}
				}
				return storeErr("get manager", err)
			}
		}

		totals, err := ComputeTotals(items, discount.ForSummary(*summary))
		if err != nil {
			return err
		}

		o := &Order{
			ID:             s.newID(),
			PartnerID:      req.PartnerID,
			ManagerID:      req.ManagerID,
			CreatedAt:      s.timestamp(),
			Items:          items,
			Status:         StatusCreated,
			Subtotal:       totals.Subtotal,
			DiscountRate:   totals.DiscountRate,
			DiscountAmount: totals.DiscountAmount,
			Total:          totals.Total,
			DeliveryMethod: req.DeliveryMethod,
			Version:        1,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return storeErr("insert order", err)
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, spanErr(span, storeErr("create order", err))
	}

	span.SetAttributes(attribute.String("order.id", created.ID))
	return created, nil
}

// Transition moves an order to the target status, applying the side effects
// of that status. A non-empty note replaces the order notes.
func (s *Service) Transition(ctx context.Context, id string, to Status, note string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Transition", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status.to", string(to)),
	))
	defer span.End()

	if !to.Valid() {
		return nil, spanErr(span, s.policy.Check(StatusCreated, to))
	}

	o, err := s.ledger.GetOrder(ctx, id)
	if err != nil {
		return nil, spanErr(span, storeErr("get order", err))
	}
	span.SetAttributes(attribute.String("order.status.from", string(o.Status)))

	if err := s.policy.Check(o.Status, to); err != nil {
		return nil, spanErr(span, err)
	}

	eff := EffectsFor(to, s.timestamp(), note)
	err = s.ledger.UpdateOrderStatus(ctx, id, o.Version, to, eff)
	if errors.Is(err, ErrConcurrentModification) {
		// The order changed after it was read. If it has since reached a
		// terminal status the request can never succeed.
		if cur, gerr := s.ledger.GetOrder(ctx, id); gerr == nil && cur.Status.Terminal() {
			return nil, spanErr(span, &InvalidTransitionError{From: cur.Status, To: to})
		}
		return nil, spanErr(span, err)
	}
	if err != nil {
		return nil, spanErr(span, storeErr("update order status", err))
	}

	o.Apply(to, eff)
	o.Version++
	return o, nil
}

// GetOrder returns a single order by id.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.ledger.GetOrder(ctx, id)
	if err != nil {
		return nil, storeErr("get order", err)
	}
	return o, nil
}

// ListOrders returns orders newest first. A nil status lists all orders.
func (s *Service) ListOrders(ctx context.Context, status *Status) ([]Order, error) {
	if status != nil && !status.Valid() {
		return nil, s.policy.Check(StatusCreated, *status)
	}
	orders, err := s.ledger.ListOrders(ctx, status)
	if err != nil {
		return nil, storeErr("list orders", err)
	}
	return orders, nil
}

// lineItems validates the requested quantities, fetches all products in a
// single batch, and captures their current prices.
func (s *Service) lineItems(ctx context.Context, reqs []ItemRequest) ([]LineItem, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]int64, len(reqs))
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: r.ProductID, Quantity: r.Quantity}
		}
		ids[i] = r.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("get products", err)
	}

	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]LineItem, len(reqs))
	for i, r := range reqs {
		p, ok := byID[r.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: r.ProductID}
		}
		items[i] = LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Article:   p.Article,
			UnitPrice: p.Price,
			Quantity:  r.Quantity,
		}
	}
	return items, nil
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
