package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"school-quiz-service/internal/domain"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps service errors to a status and a stable error code.
func classify(err error) (int, string) {
	var (
		notFound *domain.NotFoundError
		state    *domain.StateError
		cfg      *domain.ConfigurationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &state):
		return http.StatusConflict, "invalid_state"
	case errors.As(err, &cfg):
		return http.StatusUnprocessableEntity, "invalid_configuration"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorBody(err error) (int, errorPayload) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return status, errorPayload{Code: code, Message: msg}
}

func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorPayload{Code: "bad_request", Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
