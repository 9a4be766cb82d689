package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// writeError emits {"detail": msg}, the error shape the UI expects.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (uint, bool) {
	v, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
