package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/playperu/quizboard/internal/live"
)

const ssePingInterval = 30 * time.Second

// handleEvents streams hub messages as Server-Sent Events. It is
// receive-only; clients that want to announce themselves use /ws.
func handleEvents(logger *slog.Logger, hub *live.Hub, broadcaster *live.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		sub, err := hub.Subscribe()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "live updates unavailable")
			return
		}
		defer hub.Unsubscribe(sub.ID)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		if err := broadcaster.Welcome(r.Context(), sub.ID); err != nil {
			logger.Warn("initial leaderboard not sent", "subscriber", sub.ID, "error", err)
		}

		ping := time.NewTicker(ssePingInterval)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
