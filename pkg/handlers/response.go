// Package handlers exposes the HTTP API. Each handler owns one resource
// and registers its routes on the shared mux; creator scope comes from
// the JWT via the auth middleware.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError maps a service-layer error onto the HTTP surface and
// writes it. Unrecognized errors become a 500 with a generic message so
// internals never leak to clients.
func ServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var writeErr error
	switch {
	case apperrors.IsValidation(err):
		writeErr = ErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperrors.ErrUnknownConsumer):
		writeErr = ErrorResponse(w, http.StatusNotFound, "unknown_consumer", "Consumer not found")
	case errors.Is(err, apperrors.ErrNotFound):
		writeErr = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrDuplicateEvent):
		writeErr = ErrorResponse(w, http.StatusConflict, "duplicate_event", "Event already ingested")
	case errors.Is(err, apperrors.ErrConflict):
		writeErr = ErrorResponse(w, http.StatusConflict, "conflict", err.Error())
	case apperrors.IsConfiguration(err):
		logger.Error("Configuration error", zap.Error(err))
		writeErr = ErrorResponse(w, http.StatusInternalServerError, "configuration_error", "Service misconfigured")
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		writeErr = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
	if writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidation("body", "invalid JSON")
	}
	return nil
}
