package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// envelope is the wrapper every JSON response uses.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// respondJSON writes a success envelope around data
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{
		Success: true,
		Data:    data,
	})
}

// respondJSONError writes a failure envelope. Messages are clipped so
// internal error chains do not leak to clients wholesale.
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	if len(message) > 200 {
		message = message[:200] + "..."
	}
	writeEnvelope(w, status, envelope{
		Success: false,
		Error:   errorType,
		Message: message,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	env.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
