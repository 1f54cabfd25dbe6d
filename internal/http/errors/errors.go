package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jw6ventures/clinicgrid/internal/logging"
)

// Body is the JSON error envelope every endpoint returns.
type Body struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func requestLogger(r *http.Request) zerolog.Logger {
	return logging.FromContextOr(r.Context(), log.Logger)
}

// Write sends a JSON error with the given status and client-facing message.
func Write(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Error: message, RequestID: middleware.GetReqID(r.Context())})
}

// InternalError logs err and returns a generic 500.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	l := requestLogger(r)
	l.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg(message)
	Write(w, r, http.StatusInternalServerError, "internal server error")
}

func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	l := requestLogger(r)
	l.Warn().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("bad request")
	Write(w, r, http.StatusBadRequest, clientMessage)
}

func Unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	l := requestLogger(r)
	l.Info().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("unauthorized")
	w.Header().Set("WWW-Authenticate", `Bearer realm="clinicgrid"`)
	Write(w, r, http.StatusUnauthorized, "unauthorized")
}

func Forbidden(w http.ResponseWriter, r *http.Request) {
	Write(w, r, http.StatusForbidden, "forbidden")
}

func NotFound(w http.ResponseWriter, r *http.Request, what string) {
	Write(w, r, http.StatusNotFound, what+" not found")
}

func Conflict(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	l := requestLogger(r)
	l.Info().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("conflict")
	Write(w, r, http.StatusConflict, clientMessage)
}

func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	Write(w, r, http.StatusTooManyRequests, "rate limit exceeded")
}

func LogError(r *http.Request, message string, err error) {
	l := requestLogger(r)
	l.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg(message)
}
