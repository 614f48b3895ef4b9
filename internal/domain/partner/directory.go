package partner

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// CreatePartnerRequest holds the details of a partner to register. A nil
// Rating means DefaultRating.
type CreatePartnerRequest struct {
	Type         string
	CompanyName  string
	LegalAddress string
	INN          string
	DirectorName string
	Email        string
	Phone        string
	Rating       *int
}

// Directory registers partners and looks them up.
type Directory struct {
	repo Repository
}

// NewDirectory creates a Directory backed by the given Repository.
func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// Register validates req and stores a new partner.
func (d *Directory) Register(ctx context.Context, req CreatePartnerRequest) (*Partner, error) {
	p := &Partner{
		Type:         strings.TrimSpace(req.Type),
		CompanyName:  strings.TrimSpace(req.CompanyName),
		LegalAddress: strings.TrimSpace(req.LegalAddress),
		INN:          strings.TrimSpace(req.INN),
		DirectorName: strings.TrimSpace(req.DirectorName),
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Rating:       DefaultRating,
	}
	if req.Rating != nil {
		p.Rating = *req.Rating
	}

	switch {
	case p.CompanyName == "":
		return nil, errors.Wrap(ErrInvalidPartner, "company name required")
	case p.INN == "":
		return nil, errors.Wrap(ErrInvalidPartner, "inn required")
	case p.Type == "":
		return nil, errors.Wrap(ErrInvalidPartner, "partner type required")
	case p.Rating < 0:
		return nil, ErrInvalidRating
	}

	if err := d.repo.CreatePartner(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns partners ordered by company name, filtered by search when it
// is not blank.
func (d *Directory) List(ctx context.Context, search string) ([]Partner, error) {
	return d.repo.ListPartners(ctx, strings.TrimSpace(search))
}
