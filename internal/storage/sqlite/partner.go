package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/partner"
)

var _ partner.Repository = (*PartnerRepository)(nil)

// PartnerRepository implements partner.Repository on SQLite.
type PartnerRepository struct {
	db    *gorm.DB
	bound bool
}

// NewPartnerRepository returns a PartnerRepository that uses the given database.
func NewPartnerRepository(db *gorm.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

// InTx runs fn against a repository bound to one transaction.
func (r *PartnerRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx partner.Repository) error) error {
	if r.bound {
		return fn(ctx, r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &PartnerRepository{db: tx, bound: true})
	})
}

// GetPartner returns a single partner by id.
func (r *PartnerRepository) GetPartner(ctx context.Context, id int64) (*partner.Partner, error) {
	var m partnerModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, partner.ErrNotFound
		}
		return nil, fmt.Errorf("getting partner %d: %w", id, err)
	}
	p := m.toDomain()
	return &p, nil
}

// ListPartners returns partners ordered by company name. SQLite only folds
// ASCII case, so the search filter runs here instead of in SQL.
func (r *PartnerRepository) ListPartners(ctx context.Context, search string) ([]partner.Partner, error) {
	var models []partnerModel
	if err := r.db.WithContext(ctx).Order("company_name").Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing partners: %w", err)
	}

	needle := strings.ToLower(search)
	out := make([]partner.Partner, 0, len(models))
	for _, m := range models {
		if search != "" &&
			!strings.Contains(strings.ToLower(m.CompanyName), needle) &&
			!strings.Contains(m.INN, search) {
			continue
		}
		out = append(out, m.toDomain())
	}
	return out, nil
}

// CreatePartner stores p under the next free id and sets p.ID.
func (r *PartnerRepository) CreatePartner(ctx context.Context, p *partner.Partner) error {
	return r.InTx(ctx, func(ctx context.Context, tx partner.Repository) error {
		db := tx.(*PartnerRepository).db.WithContext(ctx)

		var taken int64
		if err := db.Model(&partnerModel{}).Where("inn = ?", p.INN).Count(&taken).Error; err != nil {
			return fmt.Errorf("checking inn %q: %w", p.INN, err)
		}
		if taken > 0 {
			return partner.ErrDuplicateINN
		}

		var maxID int64
		if err := db.Model(&partnerModel{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
			return fmt.Errorf("allocating partner id: %w", err)
		}

		m := partnerModel{
			ID:           maxID + 1,
			PartnerType:  p.Type,
			CompanyName:  p.CompanyName,
			LegalAddress: p.LegalAddress,
			INN:          p.INN,
			DirectorName: p.DirectorName,
			Email:        p.Email,
			Phone:        p.Phone,
			Rating:       p.Rating,
		}
		if err := db.Create(&m).Error; err != nil {
			return fmt.Errorf("creating partner %q: %w", p.CompanyName, err)
		}
		p.ID = m.ID
		return nil
	})
}

// GetEmployee returns the employee with the given id or employee.ErrNotFound.
func (r *PartnerRepository) GetEmployee(ctx context.Context, id int64) (*employee.Employee, error) {
	return getEmployee(ctx, r.db, id)
}

// GetPartnerSalesSummary aggregates the partner's sales history.
func (r *PartnerRepository) GetPartnerSalesSummary(ctx context.Context, id int64) (*partner.SalesSummary, error) {
	return partnerSalesSummary(ctx, r.db, id)
}

// SetRating overwrites the partner's current rating.
func (r *PartnerRepository) SetRating(ctx context.Context, id int64, rating int) error {
	res := r.db.WithContext(ctx).Model(&partnerModel{}).Where("id = ?", id).Update("rating", rating)
	if res.Error != nil {
		return fmt.Errorf("setting rating of partner %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return partner.ErrNotFound
	}
	return nil
}

// RecordRatingChange appends a rating audit record.
func (r *PartnerRepository) RecordRatingChange(ctx context.Context, c *partner.RatingChange) error {
	m := ratingChangeModel{
		PartnerID:  c.PartnerID,
		OldRating:  c.OldRating,
		NewRating:  c.NewRating,
		ChangeDate: c.ChangedAt.UTC(),
		ChangedBy:  c.ChangedBy,
		Reason:     c.Reason,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("recording rating change of partner %d: %w", c.PartnerID, err)
	}
	return nil
}

// ListRatingChanges returns the partner's rating history, oldest first.
func (r *PartnerRepository) ListRatingChanges(ctx context.Context, id int64) ([]partner.RatingChange, error) {
	var models []ratingChangeModel
	err := r.db.WithContext(ctx).
		Where("partner_id = ?", id).
		Order("change_date").Order("id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing rating changes of partner %d: %w", id, err)
	}

	changes := make([]partner.RatingChange, 0, len(models))
	for _, m := range models {
		changes = append(changes, partner.RatingChange{
			PartnerID: m.PartnerID,
			OldRating: m.OldRating,
			NewRating: m.NewRating,
			ChangedAt: m.ChangeDate.UTC(),
			ChangedBy: m.ChangedBy,
			Reason:    m.Reason,
		})
	}
	return changes, nil
}

func (m partnerModel) toDomain() partner.Partner {
	return partner.Partner{
		ID:           m.ID,
		Type:         m.PartnerType,
		CompanyName:  m.CompanyName,
		LegalAddress: m.LegalAddress,
		INN:          m.INN,
		DirectorName: m.DirectorName,
		Email:        m.Email,
		Phone:        m.Phone,
		Rating:       m.Rating,
	}
}
