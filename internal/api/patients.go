package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/jw6ventures/clinicgrid/internal/auth"
	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

type patientInput struct {
	Name       string `json:"name"`
	NameKana   string `json:"nameKana"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	BirthDate  string `json:"birthDate"`
	LineUserID string `json:"lineUserId"`
	Notes      string `json:"notes"`
}

func (in patientInput) toPatient() (store.Patient, error) {
	p := store.Patient{
		Name:     strings.TrimSpace(in.Name),
		NameKana: strings.TrimSpace(in.NameKana),
		Phone:    strings.TrimSpace(in.Phone),
		Email:    strings.TrimSpace(in.Email),
		Notes:    in.Notes,
	}
	if p.Name == "" {
		return p, invalidf("name is required")
	}
	if in.BirthDate != "" {
		d, err := time.Parse("2006-01-02", in.BirthDate)
		if err != nil {
			return p, invalidf("birthDate must be YYYY-MM-DD")
		}
		p.BirthDate = &d
	}
	if line := strings.TrimSpace(in.LineUserID); line != "" {
		p.LineUserID = &line
	}
	return p, nil
}

// SearchPatients matches ?q= against name, kana and phone.
func (h *Handler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewPatient(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		h.fail(w, r, err, "patients")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.fail(w, r, err, "patients")
		return
	}
	patients, err := h.patients.Search(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		h.fail(w, r, err, "patients")
		return
	}
	if patients == nil {
		patients = []store.Patient{}
	}
	writeJSON(w, http.StatusOK, patients)
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanEditPatient(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	var in patientInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err, "patient")
		return
	}
	p, err := in.toPatient()
	if err != nil {
		h.fail(w, r, err, "patient")
		return
	}
	created, err := h.patients.Create(r.Context(), p)
	if err != nil {
		h.fail(w, r, err, "patient")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewPatient(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "patient")
		return
	}
	p, err := h.patients.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "patient")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PatientAppointments is the visit history, newest first.
func (h *Handler) PatientAppointments(w http.ResponseWriter, r *http.Request) {
	staff, _ := auth.StaffFromContext(r.Context())
	if !auth.CanViewPatient(staff) {
		httperrors.Forbidden(w, r)
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err, "patient")
		return
	}
	if _, err := h.patients.GetByID(r.Context(), id); err != nil {
		h.fail(w, r, err, "patient")
		return
	}
	appts, err := h.appointments.ListForPatient(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "appointments")
		return
	}
	if appts == nil {
		appts = []store.Appointment{}
	}
	writeJSON(w, http.StatusOK, appts)
}
