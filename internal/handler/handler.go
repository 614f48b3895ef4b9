// Package handler exposes the ledger over a JSON HTTP API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/order"
	"github.com/xenking/masterpol/internal/domain/partner"
	"github.com/xenking/masterpol/internal/domain/product"
)

// Orders is the order lifecycle used by the handler.
type Orders interface {
	Quote(ctx context.Context, partnerID int64, reqs []order.ItemRequest) (*order.Quote, error)
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	Transition(ctx context.Context, id string, to order.Status, note string) (*order.Order, error)
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context, status *order.Status) ([]order.Order, error)
}

// Partners provides partner reads.
type Partners interface {
	GetPartner(ctx context.Context, id int64) (*partner.Partner, error)
	GetPartnerSalesSummary(ctx context.Context, id int64) (*partner.SalesSummary, error)
}

// Directory registers and searches partners.
type Directory interface {
	Register(ctx context.Context, req partner.CreatePartnerRequest) (*partner.Partner, error)
	List(ctx context.Context, search string) ([]partner.Partner, error)
}

// Ratings changes partner ratings and reads their history.
type Ratings interface {
	ChangeRating(ctx context.Context, req partner.ChangeRatingRequest) (*partner.RatingChange, error)
	History(ctx context.Context, partnerID int64) ([]partner.RatingChange, error)
}

// Sweeper cancels expired unpaid orders on demand.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time, grace time.Duration) (int, error)
	GraceWindow() time.Duration
}

// Handler serves the ledger API.
type Handler struct {
	orders    Orders
	partners  Partners
	directory Directory
	ratings   Ratings
	products  product.Repository
	employees employee.Repository
	sweeper   Sweeper
	now       func() time.Time
}

// Deps are the domain dependencies of a Handler.
type Deps struct {
	Orders    Orders
	Partners  Partners
	Directory Directory
	Ratings   Ratings
	Products  product.Repository
	Employees employee.Repository
	Sweeper   Sweeper
}

// New constructs a Handler with the required domain dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		orders:    deps.Orders,
		partners:  deps.Partners,
		directory: deps.Directory,
		ratings:   deps.Ratings,
		products:  deps.Products,
		employees: deps.Employees,
		sweeper:   deps.Sweeper,
		now:       time.Now,
	}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/partners", h.CreatePartner)
	mux.HandleFunc("GET /api/partners", h.ListPartners)
	mux.HandleFunc("GET /api/partners/{id}", h.GetPartner)
	mux.HandleFunc("GET /api/partners/{id}/summary", h.PartnerSummary)
	mux.HandleFunc("PUT /api/partners/{id}/rating", h.ChangeRating)
	mux.HandleFunc("GET /api/partners/{id}/rating-history", h.RatingHistory)

	mux.HandleFunc("GET /api/employees", h.ListEmployees)

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/top", h.TopProducts)

	mux.HandleFunc("POST /api/orders/quote", h.QuoteOrder)
	mux.HandleFunc("POST /api/orders/sweep", h.SweepOrders)
	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.TransitionOrder)
}
