package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a partner's purchase request tracked through its status lifecycle.
// Monetary fields are fixed at creation and never recomputed on transitions.
type Order struct {
	ID             string
	PartnerID      int64
	ManagerID      *int64
	CreatedAt      time.Time
	Items          []LineItem
	Status         Status
	Subtotal       decimal.Decimal
	DiscountRate   decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal

	PrepaymentReceived  bool
	PrepaymentAt        *time.Time
	FullPaymentReceived bool
	FullPaymentAt       *time.Time
	DeliveryMethod      string
	ProductionStartedAt *time.Time
	CompletedAt         *time.Time
	Notes               string

	// Version increments on every persisted status change and guards
	// concurrent transitions.
	Version int64
}

// LineItem is a single product entry of an order. The price is captured when
// the item is added and is not re-read from the catalog afterwards.
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Article   string          `json:"article"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"total"`
}

// Effects lists the fields a status transition changes. Nil fields are left
// untouched.
type Effects struct {
	PrepaymentReceived  *bool
	PrepaymentAt        *time.Time
	FullPaymentReceived *bool
	FullPaymentAt       *time.Time
	ProductionStartedAt *time.Time
	CompletedAt         *time.Time
	Notes               *string
}

// EffectsFor returns the side effects of moving an order to status to at the
// given time. A non-empty note replaces the order notes.
func EffectsFor(to Status, now time.Time, note string) Effects {
	var e Effects
	switch to {
	case StatusPrepaymentReceived:
		e.PrepaymentReceived = ptr(true)
		e.PrepaymentAt = ptr(now)
	case StatusInProduction:
		e.ProductionStartedAt = ptr(now)
	case StatusReady:
		e.CompletedAt = ptr(now)
	case StatusCompleted:
		e.FullPaymentReceived = ptr(true)
		e.FullPaymentAt = ptr(now)
		e.CompletedAt = ptr(now)
	case StatusCancelled:
		e.PrepaymentReceived = ptr(false)
	}
	if note != "" {
		e.Notes = ptr(note)
	}
	return e
}

// Apply sets the status and copies the non-nil effects onto the order.
func (o *Order) Apply(status Status, e Effects) {
	o.Status = status
	if e.PrepaymentReceived != nil {
		o.PrepaymentReceived = *e.PrepaymentReceived
	}
	if e.PrepaymentAt != nil {
		o.PrepaymentAt = e.PrepaymentAt
	}
	if e.FullPaymentReceived != nil {
		o.FullPaymentReceived = *e.FullPaymentReceived
	}
	if e.FullPaymentAt != nil {
		o.FullPaymentAt = e.FullPaymentAt
	}
	if e.ProductionStartedAt != nil {
		o.ProductionStartedAt = e.ProductionStartedAt
	}
	if e.CompletedAt != nil {
		o.CompletedAt = e.CompletedAt
	}
	if e.Notes != nil {
		o.Notes = *e.Notes
	}
}

func ptr[T any](v T) *T {
	return &v
}
