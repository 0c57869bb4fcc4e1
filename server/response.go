package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeErrorDetail writes a JSON error response with the underlying cause
func writeErrorDetail(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, map[string]string{"error": message, "detail": detail})
}

// readBody reads a bounded request body.
func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// decodeObject decodes a JSON object body into v. Anything else, including
// an empty or null body, is rejected.
func decodeObject(r *http.Request, v interface{}) bool {
	body, err := readBody(r)
	if err != nil {
		return false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil || probe == nil {
		return false
	}
	return json.Unmarshal(body, v) == nil
}

// parseTime accepts RFC 3339 timestamps, with or without fractional
// seconds, and bare dates (midnight UTC).
func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// queryInt reads an optional integer query parameter no smaller than min.
// ok is false when the value is present but invalid.
func queryInt(r *http.Request, name string, min int) (value int, present bool, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return 0, true, false
	}
	return n, true, true
}
