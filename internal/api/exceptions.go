package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jw6ventures/clinicgrid/internal/auth"
	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

type exceptionInput struct {
	// PractitionerID nil closes the whole clinic.
	PractitionerID *uuid.UUID `json:"practitionerId"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	Reason         string     `json:"reason"`
}

func (h *Handler) CreateException(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	var in exceptionInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err, "exception")
		return
	}
	if in.Start.IsZero() || !in.End.After(in.Start) {
		h.fail(w, r, invalidf("end must be after start"), "exception")
		return
	}
	if !auth.CanManageAvailability(staff, in.PractitionerID) {
		httperrors.Forbidden(w, r)
		return
	}

	created, err := h.exceptions.Create(r.Context(), store.AvailabilityException{
		PractitionerID: in.PractitionerID,
		Start:          in.Start,
		End:            in.End,
		Reason:         strings.TrimSpace(in.Reason),
	})
	if err != nil {
		h.fail(w, r, err, "exception")
		return
	}
	h.invalidate(r, created.Start, created.End)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) DeleteException(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "exception")
		return
	}
	existing, err := h.exceptions.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "exception")
		return
	}
	if !auth.CanManageAvailability(staff, existing.PractitionerID) {
		httperrors.Forbidden(w, r)
		return
	}
	deleted, err := h.exceptions.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "exception")
		return
	}
	h.invalidate(r, deleted.Start, deleted.End)
	w.WriteHeader(http.StatusNoContent)
}
