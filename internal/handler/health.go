package handler

import (
	"net/http"
	"time"
)

// HandleHealth is the liveness probe.
//
// HTTP: GET /health → 200 {"status":"healthy","timestamp":"..."}
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
