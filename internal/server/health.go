package server

import (
	"net/http"
	"time"
)

// HealthResponse is the liveness body of /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

func handleHealth(startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "OK",
			Timestamp: now.UTC(),
			Uptime:    now.Sub(startedAt).Seconds(),
		})
	}
}
