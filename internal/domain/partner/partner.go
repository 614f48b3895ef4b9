package partner

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/masterpol/internal/domain/employee"
)

// DefaultRating is given to partners registered without a rating.
const DefaultRating = 5

var (
	// ErrNotFound is returned when a referenced partner does not exist.
	ErrNotFound = errors.New("partner not found")
	// ErrInvalidRating is returned for ratings outside the accepted range.
	ErrInvalidRating = errors.New("rating must not be negative")
	// ErrInvalidPartner is returned when required partner details are missing.
	ErrInvalidPartner = errors.New("invalid partner")
	// ErrDuplicateINN is returned when another partner has the same INN.
	ErrDuplicateINN = errors.New("partner with this inn already exists")
)

// Partner is a company buying products under a partner agreement.
type Partner struct {
	ID           int64
	Type         string
	CompanyName  string
	LegalAddress string
	INN          string
	DirectorName string
	Email        string
	Phone        string
	Rating       int
}

// SalesSummary aggregates a partner's sales history. It is derived on every
// read and never stored.
type SalesSummary struct {
	PartnerID      int64
	TotalQuantity  int64
	TotalAmount    decimal.Decimal
	UniqueProducts int
}

// RatingChange is an append-only audit record of a partner rating update.
type RatingChange struct {
	PartnerID int64
	OldRating int
	NewRating int
	ChangedAt time.Time
	ChangedBy *int64
	Reason    string
}

// Repository provides partner reads, registration and the rating audit trail.
type Repository interface {
	GetPartner(ctx context.Context, id int64) (*Partner, error)
	// ListPartners returns partners ordered by company name. A non-empty
	// search keeps partners whose company name contains it, ignoring case,
	// or whose INN contains it.
	ListPartners(ctx context.Context, search string) ([]Partner, error)
	// CreatePartner stores p under a new id and sets p.ID. Returns
	// ErrDuplicateINN when the INN is taken.
	CreatePartner(ctx context.Context, p *Partner) error
	// GetEmployee returns employee.ErrNotFound for unknown ids.
	GetEmployee(ctx context.Context, id int64) (*employee.Employee, error)
	GetPartnerSalesSummary(ctx context.Context, id int64) (*SalesSummary, error)
	SetRating(ctx context.Context, id int64, rating int) error
	RecordRatingChange(ctx context.Context, c *RatingChange) error
	ListRatingChanges(ctx context.Context, id int64) ([]RatingChange, error)
	// InTx runs fn against a repository bound to a single transaction.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}
