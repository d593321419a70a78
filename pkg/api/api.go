// Package api defines the contracts for API responses.
// It decouples the API structure from the internal domain models.
package api

import (
	"encoding/json"
	"net/http"

	pkgerrors "canvas-backend/pkg/errors"
)

// ErrorResponse is a standardized error message for API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Success formats a successful JSON response.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error formats a JSON error response.
func Error(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// FromError maps an application error to the appropriate HTTP response.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case pkgerrors.IsValidation(err):
		writeTyped(w, http.StatusBadRequest, err)
	case pkgerrors.IsNotFound(err):
		writeTyped(w, http.StatusNotFound, err)
	case pkgerrors.IsConflict(err):
		writeTyped(w, http.StatusConflict, err)
	case pkgerrors.IsPersistence(err):
		writeTyped(w, http.StatusServiceUnavailable, err)
	case pkgerrors.IsGeneration(err):
		writeTyped(w, http.StatusBadGateway, err)
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

func writeTyped(w http.ResponseWriter, status int, err error) {
	resp := ErrorResponse{Error: err.Error()}
	if appErr, ok := err.(*pkgerrors.AppError); ok {
		resp.Error = appErr.Message
		resp.Code = string(appErr.Type)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// ParseJSONBody parses a JSON request body with a size limit.
func ParseJSONBody(r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	return decoder.Decode(v)
}
