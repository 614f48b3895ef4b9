package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// ListEmployees returns every employee ordered by full name.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.employees.ListEmployees(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, emp := range employees {
				encodeEmployee(e, emp)
			}
		})
	})
}
