package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/masterpol/internal/domain/discount"
	"github.com/xenking/masterpol/internal/domain/partner"
)

// CreatePartner registers a new partner.
func (h *Handler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var req partner.CreatePartnerRequest
	err := readBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "type":
			req.Type, err = d.Str()
		case "company_name":
			req.CompanyName, err = d.Str()
		case "legal_address":
			req.LegalAddress, err = d.Str()
		case "inn":
			req.INN, err = d.Str()
		case "director_name":
			req.DirectorName, err = d.Str()
		case "email":
			req.Email, err = d.Str()
		case "phone":
			req.Phone, err = d.Str()
		case "rating":
			req.Rating, err = decodeOptInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.directory.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/partners/"+strconv.FormatInt(p.ID, 10))
	respond(w, http.StatusCreated, func(e *jx.Encoder) { encodePartner(e, p) })
}

// ListPartners returns partners ordered by company name, filtered by the
// optional search query parameter.
func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.directory.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range partners {
				encodePartner(e, &partners[i])
			}
		})
	})
}

// GetPartner returns one partner.
func (h *Handler) GetPartner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.partners.GetPartner(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodePartner(e, p) })
}

// PartnerSummary returns a partner's sales statistics and current discount.
func (h *Handler) PartnerSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.partners.GetPartner(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.partners.GetPartnerSalesSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		encodeSummary(e, p, s, discount.ForSummary(*s))
	})
}

// ChangeRating sets a partner's rating and records the change.
func (h *Handler) ChangeRating(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := partner.ChangeRatingRequest{PartnerID: id}
	var hasRating bool
	err = readBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "rating":
			hasRating = true
			req.NewRating, err = d.Int()
		case "changed_by":
			req.ChangedBy, err = decodeOptInt64(d)
		case "reason":
			req.Reason, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && !hasRating {
		err = badRequest("rating required", nil)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.ratings.ChangeRating(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeRatingChange(e, *c) })
}

// RatingHistory lists a partner's rating changes, oldest first.
func (h *Handler) RatingHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	changes, err := h.ratings.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range changes {
				encodeRatingChange(e, c)
			}
		})
	})
}
