package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/masterpol/internal/domain/order"
)

// QuoteOrder prices items for a partner without creating an order.
func (h *Handler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodeOrderRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.orders.Quote(r.Context(), req.PartnerID, req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, q) })
}

// CreateOrder places a new order in the created status.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	req, err := decodeOrderRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/orders/"+o.ID)
	respond(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders returns orders newest first, filtered by the optional status
// query parameter.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *order.Status
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := order.ParseStatus(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status = &st
	}

	orders, err := h.orders.ListOrders(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
}

// GetOrder returns one order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// TransitionOrder moves an order to the requested status.
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var (
		to   string
		note string
	)
	err := readBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			to, err = d.Str()
		case "note":
			note, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Transition(r.Context(), r.PathValue("id"), order.Status(to), note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// SweepOrders runs the expiration sweeper once. The optional grace query
// parameter overrides the configured window.
func (h *Handler) SweepOrders(w http.ResponseWriter, r *http.Request) {
	grace := h.sweeper.GraceWindow()
	if v := r.URL.Query().Get("grace"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, r, badRequest("invalid grace "+v, err))
			return
		}
		grace = d
	}

	n, err := h.sweeper.Sweep(r.Context(), h.now(), grace)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("cancelled", func(e *jx.Encoder) { e.Int(n) })
			e.Field("grace", func(e *jx.Encoder) { e.Str(grace.String()) })
		})
	})
}
