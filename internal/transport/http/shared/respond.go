// Package shared centralizes JSON response envelopes so every handler
// translates domain errors the same way.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "reclink/pkg/domain-errors"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError maps a coded domain error to its HTTP status and envelope.
// Uncoded errors surface as opaque internal errors.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	envelope := errorEnvelope{Error: string(code)}
	var de *dErrors.DomainError
	if errors.As(err, &de) && code != dErrors.CodeInternal {
		envelope.Message = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), envelope)
}
