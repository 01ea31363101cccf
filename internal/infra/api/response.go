package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain"
	"community-subscription-bot/internal/infra/logging"
)

// Response is the envelope of every JSON answer.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func OK(data any) Response { return Response{Status: StatusOK, Data: data} }

func Error(msg string) Response { return Response{Status: StatusError, Error: msg} }

// ValidationError turns validator failures into one readable message.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "uuid":
			msgs = append(msgs, fmt.Sprintf("field %s must be a uuid", err.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("field %s must be an e-mail", err.Field()))
		case "min", "max", "gt", "gte", "lte", "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s is out of range", err.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Response{Status: StatusError, Error: strings.Join(msgs, ", ")}
}

func respond(w http.ResponseWriter, r *http.Request, code int, data any) {
	render.Status(r, code)
	render.JSON(w, r, OK(data))
}

func fail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, Error(msg))
}

// decodeAndValidate reads a JSON body into dst and runs the struct tags.
// It writes the error response itself and reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	if r.Body == nil || r.Body == http.NoBody {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		fail(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, ValidationError(verrs))
			return false
		}
		fail(w, r, http.StatusUnprocessableEntity, "invalid request")
		return false
	}
	return true
}

// statusFor maps the domain taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrMalformedCorrelation),
		errors.Is(err, domain.ErrUnknownUser),
		errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransientIO):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// failErr logs err and answers with a generic message for its status.
func failErr(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, op string, err error) {
	code := statusFor(err)
	ev := logging.With(r.Context(), logger).Warn()
	if code >= http.StatusInternalServerError {
		ev = logging.With(r.Context(), logger).Error()
	}
	ev.Err(err).Str("op", op).Int("status", code).Msg("request failed")
	fail(w, r, code, strings.ToLower(http.StatusText(code)))
}
