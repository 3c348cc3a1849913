package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// decodeRequest decodes a JSON request body into the target struct.
// Unknown fields are ignored; callers predate this service and send
// whatever their forms collected.
func decodeRequest(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("error decoding request body: %w", err)
	}
	return nil
}

// respondJSON writes a JSON response body with the given status code.
// Encode errors are unrecoverable at this point (the status line is
// already written), so they are returned for logging only.
func respondJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
