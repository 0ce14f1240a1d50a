package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/playperu/quizboard/internal/quizboard"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 100
)

// leaderboardLimit reads ?limit=. Missing, malformed or negative values
// fall back to the default; large values are capped.
func leaderboardLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLeaderboardLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultLeaderboardLimit
	}
	return min(n, maxLeaderboardLimit)
}

func handleLeaderboard(logger *slog.Logger, svc *quizboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		standings, err := svc.Leaderboard(r.Context(), leaderboardLimit(r))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, standings)
	}
}

func handleStats(logger *slog.Logger, svc *quizboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
