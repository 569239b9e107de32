// Package shared holds the response helpers every HTTP handler uses, so the
// wire envelope ({"error": ...} for failures) is produced in exactly one
// place.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "supplytrail/pkg/domain-errors"
)

// WriteJSON writes payload as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError maps a domain error to its HTTP status and writes the error
// envelope. Uncoded errors become opaque 500s.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{"error": dErrors.MessageOf(err)})
}
