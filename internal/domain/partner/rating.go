package partner

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ChangeRatingRequest holds the input for a rating update.
type ChangeRatingRequest struct {
	PartnerID int64
	NewRating int
	ChangedBy *int64
	Reason    string
}

// RatingService updates partner ratings and keeps their audit trail.
type RatingService struct {
	repo Repository
	now  func() time.Time
}

// NewRatingService creates a RatingService backed by the given Repository.
func NewRatingService(repo Repository) *RatingService {
	return &RatingService{repo: repo, now: time.Now}
}

// ChangeRating sets a new rating and appends the matching audit record in a
// single transaction.
func (s *RatingService) ChangeRating(ctx context.Context, req ChangeRatingRequest) (*RatingChange, error) {
	if req.NewRating < 0 {
		return nil, ErrInvalidRating
	}

	var change *RatingChange
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Repository) error {
		p, err := tx.GetPartner(ctx, req.PartnerID)
		if err != nil {
			return err
		}
		if req.ChangedBy != nil {
			if _, err := tx.GetEmployee(ctx, *req.ChangedBy); err != nil {
				return errors.Wrapf(err, "changed by %d", *req.ChangedBy)
			}
		}
		if err := tx.SetRating(ctx, p.ID, req.NewRating); err != nil {
			return errors.Wrap(err, "set rating")
		}
		c := &RatingChange{
			PartnerID: p.ID,
			OldRating: p.Rating,
			NewRating: req.NewRating,
			ChangedAt: s.now().UTC().Truncate(time.Microsecond),
			ChangedBy: req.ChangedBy,
			Reason:    req.Reason,
		}
		if err := tx.RecordRatingChange(ctx, c); err != nil {
			return errors.Wrap(err, "record rating change")
		}
		change = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// History returns the rating changes recorded for a partner, oldest first.
func (s *RatingService) History(ctx context.Context, partnerID int64) ([]RatingChange, error) {
	if _, err := s.repo.GetPartner(ctx, partnerID); err != nil {
		return nil, err
	}
	return s.repo.ListRatingChanges(ctx, partnerID)
}
