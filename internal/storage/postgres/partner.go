package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/masterpol/internal/domain/employee"
	"github.com/xenking/masterpol/internal/domain/partner"
)

const (
	partnerColumns = `id, partner_type, company_name, legal_address, inn,
		director_name, email, phone, rating`

	getPartnerSQL = `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`

	listPartnersSQL = `SELECT ` + partnerColumns + ` FROM partners
		WHERE $1::TEXT = '' OR strpos(lower(company_name), lower($1)) > 0 OR strpos(inn, $1) > 0
		ORDER BY company_name, id`

	// Partner ids are assigned by the seed data, so new ids are allocated
	// under a transaction-scoped advisory lock.
	lockPartnerIDsSQL = `SELECT pg_advisory_xact_lock(hashtext('partners.id'))`

	partnerINNTakenSQL = `SELECT EXISTS (SELECT 1 FROM partners WHERE inn = $1)`

	insertPartnerSQL = `INSERT INTO partners (id, partner_type, company_name, legal_address, inn,
		director_name, email, phone, rating)
		SELECT COALESCE(MAX(id), 0) + 1, $1::TEXT, $2::TEXT, $3::TEXT, $4::TEXT,
			$5::TEXT, $6::TEXT, $7::TEXT, $8::INTEGER
		FROM partners
		RETURNING id`

	setPartnerRatingSQL = `UPDATE partners SET rating = $2 WHERE id = $1`

	insertRatingChangeSQL = `INSERT INTO partner_rating_history
		(partner_id, old_rating, new_rating, change_date, changed_by, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listRatingChangesSQL = `SELECT partner_id, old_rating, new_rating, change_date, changed_by, reason
		FROM partner_rating_history WHERE partner_id = $1
		ORDER BY change_date, id`
)

const uniqueViolation = "23505"

var _ partner.Repository = (*PartnerRepository)(nil)

// PartnerRepository implements partner.Repository backed by PostgreSQL.
type PartnerRepository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPartnerRepository returns a PartnerRepository that uses the given pool.
func NewPartnerRepository(pool *pgxpool.Pool) *PartnerRepository {
	return &PartnerRepository{pool: pool, q: pool}
}

// InTx runs fn against a repository bound to one read-committed transaction.
func (r *PartnerRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx partner.Repository) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PartnerRepository{q: tx})
	})
}

// GetPartner returns a single partner by id.
func (r *PartnerRepository) GetPartner(ctx context.Context, id int64) (*partner.Partner, error) {
	rows, err := r.q.Query(ctx, getPartnerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting partner %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPartner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, partner.ErrNotFound
		}
		return nil, fmt.Errorf("getting partner %d: %w", id, err)
	}
	return &p, nil
}

// ListPartners returns partners ordered by company name. A non-empty search
// matches a case-insensitive company name substring or an INN substring.
func (r *PartnerRepository) ListPartners(ctx context.Context, search string) ([]partner.Partner, error) {
	rows, err := r.q.Query(ctx, listPartnersSQL, search)
	if err != nil {
		return nil, fmt.Errorf("listing partners: %w", err)
	}
	partners, err := pgx.CollectRows(rows, scanPartner)
	if err != nil {
		return nil, fmt.Errorf("listing partners: %w", err)
	}
	return partners, nil
}

// CreatePartner stores p under the next free id and sets p.ID.
func (r *PartnerRepository) CreatePartner(ctx context.Context, p *partner.Partner) error {
	return r.InTx(ctx, func(ctx context.Context, tx partner.Repository) error {
		q := tx.(*PartnerRepository).q

		if _, err := q.Exec(ctx, lockPartnerIDsSQL); err != nil {
			return fmt.Errorf("locking partner ids: %w", err)
		}

		var taken bool
		if err := q.QueryRow(ctx, partnerINNTakenSQL, p.INN).Scan(&taken); err != nil {
			return fmt.Errorf("checking inn %q: %w", p.INN, err)
		}
		if taken {
			return partner.ErrDuplicateINN
		}

		err := q.QueryRow(ctx, insertPartnerSQL,
			p.Type, p.CompanyName, p.LegalAddress, p.INN,
			p.DirectorName, p.Email, p.Phone, p.Rating,
		).Scan(&p.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return partner.ErrDuplicateINN
			}
			return fmt.Errorf("creating partner %q: %w", p.CompanyName, err)
		}
		return nil
	})
}

// GetEmployee returns the employee with the given id or employee.ErrNotFound.
func (r *PartnerRepository) GetEmployee(ctx context.Context, id int64) (*employee.Employee, error) {
	return getEmployee(ctx, r.q, id)
}

// GetPartnerSalesSummary aggregates the partner's sales history.
func (r *PartnerRepository) GetPartnerSalesSummary(ctx context.Context, id int64) (*partner.SalesSummary, error) {
	return partnerSalesSummary(ctx, r.q, id)
}

// SetRating overwrites the partner's current rating.
func (r *PartnerRepository) SetRating(ctx context.Context, id int64, rating int) error {
	tag, err := r.q.Exec(ctx, setPartnerRatingSQL, id, rating)
	if err != nil {
		return fmt.Errorf("setting rating of partner %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return partner.ErrNotFound
	}
	return nil
}

// RecordRatingChange appends a rating audit record.
func (r *PartnerRepository) RecordRatingChange(ctx context.Context, c *partner.RatingChange) error {
	_, err := r.q.Exec(ctx, insertRatingChangeSQL,
		c.PartnerID, c.OldRating, c.NewRating, c.ChangedAt, c.ChangedBy, c.Reason,
	)
	if err != nil {
		return fmt.Errorf("recording rating change of partner %d: %w", c.PartnerID, err)
	}
	return nil
}

// ListRatingChanges returns the partner's rating history, oldest first.
func (r *PartnerRepository) ListRatingChanges(ctx context.Context, id int64) ([]partner.RatingChange, error) {
	rows, err := r.q.Query(ctx, listRatingChangesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing rating changes of partner %d: %w", id, err)
	}
	changes, err := pgx.CollectRows(rows, scanRatingChange)
	if err != nil {
		return nil, fmt.Errorf("listing rating changes of partner %d: %w", id, err)
	}
	return changes, nil
}

func scanPartner(row pgx.CollectableRow) (partner.Partner, error) {
	var (
		p      partner.Partner
		rating int32
	)
	err := row.Scan(
		&p.ID, &p.Type, &p.CompanyName, &p.LegalAddress, &p.INN,
		&p.DirectorName, &p.Email, &p.Phone, &rating,
	)
	p.Rating = int(rating)
	return p, err
}

func scanRatingChange(row pgx.CollectableRow) (partner.RatingChange, error) {
	var (
		c          partner.RatingChange
		oldRating  int32
		newRating  int32
		changeDate time.Time
	)
	err := row.Scan(&c.PartnerID, &oldRating, &newRating, &changeDate, &c.ChangedBy, &c.Reason)
	c.OldRating = int(oldRating)
	c.NewRating = int(newRating)
	c.ChangedAt = changeDate.UTC()
	return c, err
}
