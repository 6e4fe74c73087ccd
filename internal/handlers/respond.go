package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/linkapp/backend/internal/logging"
)

// errorBody is the failure envelope shared by every endpoint. Validation
// failures carry a per-field message map; everything else carries a single
// result message.
type errorBody struct {
	Status bool           `json:"status"`
	Error  map[string]any `json:"error"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError writes a single-message failure envelope.
func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, errorBody{Error: map[string]any{"result": message}})
}

// respondFieldErrors writes a validation failure with one message per field.
func respondFieldErrors(ctx context.Context, w http.ResponseWriter, status int, fields map[string]string) {
	payload := make(map[string]any, len(fields))
	for field, message := range fields {
		payload[field] = message
	}
	respondJSON(ctx, w, status, errorBody{Error: payload})
}

// statusOK is the bare success envelope.
type statusOK struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}

func respondOK(ctx context.Context, w http.ResponseWriter, message string) {
	respondJSON(ctx, w, http.StatusOK, statusOK{Status: true, Message: message})
}
