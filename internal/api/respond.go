package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/caseflow/caseflow/internal/storage/sqlite"
)

// maxBodySize bounds JSON and CSV request bodies (8 MiB)
const maxBodySize = 8 << 20

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

// respondError maps domain errors onto HTTP statuses. Storage wraps
// validation failures rather than exposing a sentinel, so those are
// matched on the wrapped message.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sqlite.ErrIllegalTransition), errors.Is(err, sqlite.ErrModuleNotEmpty):
		status = http.StatusConflict
	case strings.Contains(err.Error(), "validation failed"),
		strings.Contains(err.Error(), "invalid"):
		status = http.StatusBadRequest
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...interface{}) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// badParam errors carry "invalid" so respondError maps them to 400
func badParam(name, value string) error {
	return fmt.Errorf("invalid %s parameter: %q", name, value)
}

func badParamRespond(w http.ResponseWriter, name string, value interface{}) {
	badRequest(w, "invalid %s value: %v", name, value)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
