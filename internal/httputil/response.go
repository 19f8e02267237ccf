// Package httputil holds the JSON request and response helpers shared by
// every HTTP handler.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"restaurant-system/internal/apperrors"
	"restaurant-system/internal/logger"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
}

// WriteJSON writes v with the given status code
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto an HTTP status and writes the error body.
// Platform failures are logged and hidden behind a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	requestID := logger.RequestIDFromContext(r.Context())
	status, resp := classify(err)
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	resp.RequestID = requestID

	if status >= http.StatusInternalServerError {
		log.Error("request_failed", fmt.Sprintf("%s %s failed", r.Method, r.URL.Path), requestID, err, map[string]interface{}{
			"status_code": status,
		})
	}

	if encErr := WriteJSON(w, status, resp); encErr != nil {
		log.Error("response_encoding_failed", "Failed to encode error response", requestID, encErr, nil)
	}
}

// StatusCode returns the HTTP status WriteError would use for err
func StatusCode(err error) int {
	status, _ := classify(err)
	return status
}

func classify(err error) (int, ErrorResponse) {
	var ve apperrors.ValidationError
	var ce apperrors.ConflictError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{Error: ve.Message, Field: ve.Field}
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{Error: "authentication required"}
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "forbidden"}
	case errors.As(err, &ce):
		return http.StatusConflict, ErrorResponse{Error: ce.Message}
	case apperrors.IsPlatform(err):
		return http.StatusBadGateway, ErrorResponse{Error: "upstream service unavailable"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
	}
}

// DecodeJSON reads a JSON request body into v. Unknown fields, a wrong
// content type and trailing data are validation errors.
func DecodeJSON(r *http.Request, v interface{}) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return apperrors.Invalid("content_type", "Content-Type must be application/json")
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return apperrors.Invalid("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if decoder.More() {
		return apperrors.Invalid("body", "request body must contain a single JSON object")
	}
	return nil
}
