package server

import (
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"practice-insights/errors"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeSuccess(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(Response{Success: true, Message: message, Data: data})
}

// writeError maps domain errors to status codes. Client errors carry their
// message; anything else is logged and reported generically.
func writeError(log *zap.Logger, w http.ResponseWriter, err error) {
	code, message := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Int("status", code), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(Response{Success: false, Message: message})
}

// requestError marks a malformed request.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

func statusFor(err error) (int, string) {
	var (
		reqErr    *requestError
		headerErr *errors.HeaderError
		parseErr  *errors.ParseError
		valErrs   validator.ValidationErrors
	)
	switch {
	case stderrors.Is(err, errors.ErrExpired):
		return http.StatusGone, err.Error()
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case stderrors.As(err, &headerErr),
		stderrors.As(err, &parseErr),
		stderrors.Is(err, errors.ErrMissingAppointments),
		stderrors.Is(err, errors.ErrNoMonths):
		return http.StatusUnprocessableEntity, err.Error()
	case stderrors.As(err, &valErrs), stderrors.As(err, &reqErr):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "something went wrong while processing the request"
	}
}
