package api

import (
	"net/http"

	"github.com/jw6ventures/clinicgrid/internal/auth"
	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
	"github.com/jw6ventures/clinicgrid/internal/revenue"
)

func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewRevenue(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	from, to, err := h.dateRange(r)
	if err != nil {
		h.fail(w, r, err, "revenue")
		return
	}
	receipts, err := h.receipts.ListRange(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err, "revenue")
		return
	}
	writeJSON(w, http.StatusOK, revenue.Summarize(receipts, from, to, from.Location()))
}
