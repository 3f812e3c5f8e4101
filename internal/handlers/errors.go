package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"edugame/internal/service"
	"edugame/internal/validation"
)

const maxBodyBytes = 1 << 20

var (
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("insufficient permissions")
	errRateLimited  = errors.New("too many requests, try again later")
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields validation.Errors `json:"fields,omitempty"`
}

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownQuestions),
		errors.Is(err, service.ErrQuestionNotInSession),
		errors.Is(err, service.ErrInvalidResetToken):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden),
		errors.Is(err, service.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, service.ErrQuestionNotFound),
		errors.Is(err, service.ErrLevelNotFound),
		errors.Is(err, service.ErrFeedbackNotFound),
		errors.Is(err, service.ErrGameSessionNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrQuestionInUse),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAlreadyAnswered),
		errors.Is(err, service.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrLevelHasNoQuestions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// respondWithError writes err as a JSON error body. Unclassified errors are
// logged and reported as a generic 500.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		body.Error = "validation failed"
		body.Fields = verrs
	}
	if status == http.StatusInternalServerError {
		LoggerFromContext(r.Context()).WithError(err).Error("request failed")
		body.Error = "internal server error"
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into v. Malformed bodies become a
// validation error on the "body" field.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return validation.Errors{"body": "is required"}
		}
		return validation.Errors{"body": "must be valid JSON"}
	}
	return nil
}
