// Package api serves the JSON endpoints behind the schedule screen and the
// LIFF self-service app.
//
// The LIFF endpoints do not verify LINE identity tokens. They must sit behind
// a gateway that verifies the token, forwards the LINE user id in
// X-Line-User-Id and proves itself with the shared secret in
// X-Gateway-Secret. Without a configured secret the endpoints are not mounted.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jw6ventures/clinicgrid/internal/calendar"
	"github.com/jw6ventures/clinicgrid/internal/grid"
	httperrors "github.com/jw6ventures/clinicgrid/internal/http/errors"
	"github.com/jw6ventures/clinicgrid/internal/logging"
	"github.com/jw6ventures/clinicgrid/internal/store"
)

const (
	maxBodyBytes  = 1 << 20
	maxRangeDays  = 93
	lineUserIDHdr = "X-Line-User-Id"
	gatewayHdr    = "X-Gateway-Secret"
)

var (
	errInvalid = errors.New("invalid request")
	errGateway = errors.New("missing or wrong gateway secret")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalid, fmt.Sprintf(format, args...))
}

// Calendar is satisfied by *calendar.Service.
type Calendar interface {
	DayView(ctx context.Context, req calendar.DayRequest) (*calendar.DayView, error)
	ParseDate(value string) (time.Time, error)
	DayBounds(date time.Time) (time.Time, time.Time)
	Indicator(date time.Time) grid.Indicator
	InvalidateRange(ctx context.Context, start, end time.Time) error
}

type Deps struct {
	Calendar      Calendar
	Practitioners store.PractitionerRepository
	Patients      store.PatientRepository
	Appointments  store.AppointmentRepository
	Exceptions    store.AvailabilityExceptionRepository
	Receipts      store.ReceiptRepository
	// ClinicName titles the iCalendar feed.
	ClinicName string
	// LIFFGatewaySecret must match X-Gateway-Secret on LIFF requests.
	LIFFGatewaySecret string
	Logger            zerolog.Logger
}

type Handler struct {
	cal           Calendar
	practitioners store.PractitionerRepository
	patients      store.PatientRepository
	appointments  store.AppointmentRepository
	exceptions    store.AvailabilityExceptionRepository
	receipts      store.ReceiptRepository
	clinicName    string
	gatewaySecret []byte
	logger        zerolog.Logger
	now           func() time.Time
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		cal:           deps.Calendar,
		practitioners: deps.Practitioners,
		patients:      deps.Patients,
		appointments:  deps.Appointments,
		exceptions:    deps.Exceptions,
		receipts:      deps.Receipts,
		clinicName:    deps.ClinicName,
		gatewaySecret: []byte(deps.LIFFGatewaySecret),
		logger:        deps.Logger,
		now:           time.Now,
	}
}

// Register mounts the staff endpoints. Callers put auth.Middleware in front.
func (h *Handler) Register(r chi.Router) {
	r.Get("/layout", h.Layout)
	r.Get("/now", h.Now)
	r.Get("/practitioners", h.ListPractitioners)

	r.Get("/appointments", h.ListAppointments)
	r.Post("/appointments", h.CreateAppointment)
	r.Get("/appointments.ics", h.AppointmentFeed)
	r.Get("/appointments/{id}", h.GetAppointment)
	r.Put("/appointments/{id}", h.UpdateAppointment)
	r.Post("/appointments/{id}/cancel", h.CancelAppointment)

	r.Post("/exceptions", h.CreateException)
	r.Delete("/exceptions/{id}", h.DeleteException)

	r.Get("/patients", h.SearchPatients)
	r.Post("/patients", h.CreatePatient)
	r.Get("/patients/{id}", h.GetPatient)
	r.Get("/patients/{id}/appointments", h.PatientAppointments)

	r.Get("/revenue", h.Revenue)
}

// RegisterLIFF mounts the patient self-service endpoints when a gateway
// secret is configured.
func (h *Handler) RegisterLIFF(r chi.Router) {
	if len(h.gatewaySecret) == 0 {
		h.logger.Warn().Msg("LIFF gateway secret not set, LIFF endpoints disabled")
		return
	}
	r.With(h.requireGateway).Get("/liff/appointments", h.LIFFAppointments)
}

func (h *Handler) requireGateway(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(gatewayHdr))
		if subtle.ConstantTimeCompare(got, h.gatewaySecret) != 1 {
			httperrors.Unauthorized(w, r, errGateway)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidf("malformed JSON body: %v", err)
	}
	return nil
}

// fail maps err onto a response. what names the resource in 404 bodies.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, errInvalid):
		httperrors.BadRequestError(w, r, err, err.Error())
	case errors.Is(err, store.ErrNotFound):
		httperrors.NotFound(w, r, what)
	case errors.Is(err, store.ErrConflict):
		httperrors.Conflict(w, r, err, "the practitioner already has an appointment at that time")
	default:
		httperrors.InternalError(w, r, err, what+" request failed")
	}
}

func (h *Handler) log(r *http.Request) *zerolog.Logger {
	l := logging.FromContextOr(r.Context(), h.logger)
	return &l
}

// invalidate drops cached layouts for [start, end). Failures only cost
// freshness until the cache TTL runs out.
func (h *Handler) invalidate(r *http.Request, start, end time.Time) {
	if err := h.cal.InvalidateRange(r.Context(), start, end); err != nil {
		h.log(r).Warn().Err(err).Time("start", start).Time("end", end).Msg("layout cache invalidation failed")
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, invalidf("invalid id")
	}
	return id, nil
}

func optionalUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, invalidf("invalid %s", key)
	}
	return &id, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidf("invalid %s", key)
	}
	return n, nil
}

// dateRange reads inclusive from/to dates and returns the half-open instant
// range they cover. Both default to today; to defaults to from.
func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	fromDay, err := h.cal.ParseDate(q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, invalidf("invalid from date")
	}
	toDay := fromDay
	if raw := q.Get("to"); raw != "" {
		if toDay, err = h.cal.ParseDate(raw); err != nil {
			return time.Time{}, time.Time{}, invalidf("invalid to date")
		}
	}
	from, _ := h.cal.DayBounds(fromDay)
	_, to := h.cal.DayBounds(toDay)
	if !to.After(from) {
		return time.Time{}, time.Time{}, invalidf("to is before from")
	}
	if from.AddDate(0, 0, maxRangeDays).Before(to) {
		return time.Time{}, time.Time{}, invalidf("range longer than %d days", maxRangeDays)
	}
	return from, to, nil
}
