package server

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/quizboard/internal/handler/health"
)

func addRoutes(r chi.Router, deps Deps) {
	logger := deps.Logger

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", handleSwaggerUI())
	r.Mount("/healthz", health.NewHandler(logger, deps.Checks).Routes())
	r.Get("/ws", handleLive(logger, deps.Hub, deps.Broadcaster))

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(logger, deps.Limiter))

		r.Post("/submit-quiz", handleSubmitQuiz(logger, deps.Service))
		r.Get("/leaderboard", handleLeaderboard(logger, deps.Service))
		r.Get("/stats", handleStats(logger, deps.Service))
		r.Get("/health", handleHealth(deps.StartedAt))
		r.Get("/events", handleEvents(logger, deps.Hub, deps.Broadcaster))

		r.NotFound(handleNotFound)
		r.MethodNotAllowed(handleMethodNotAllowed)
	})

	r.MethodNotAllowed(handleMethodNotAllowed)
	r.NotFound(handleNotFound)
	if deps.StaticDir != "" {
		if info, err := os.Stat(deps.StaticDir); err == nil && info.IsDir() {
			logger.Info("serving static assets", "dir", deps.StaticDir)
			r.NotFound(handleStatic(deps.StaticDir))
		}
	}
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
