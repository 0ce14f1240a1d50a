package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/quizboard/internal/handler/health"
	"github.com/playperu/quizboard/internal/quizboard"
)

// LeaderboardQuery documents GET /api/leaderboard parameters.
type LeaderboardQuery struct {
	Limit int `query:"limit" default:"50" minimum:"0" maximum:"100" description:"Maximum number of rows."`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Quizboard API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Quiz result submission, ranking and live leaderboard.")

	// POST /api/submit-quiz
	submit, _ := r.NewOperationContext(http.MethodPost, "/api/submit-quiz")
	submit.SetSummary("Submit quiz result")
	submit.SetDescription("Stores a result, returns its rank and pushes live-score-update and leaderboard-update to every subscriber.")
	submit.AddReqStructure(quizboard.Submission{})
	submit.AddRespStructure(quizboard.Receipt{}, openapi.WithHTTPStatus(http.StatusOK))
	submit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	submit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	submit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(submit)

	// GET /api/leaderboard
	board, _ := r.NewOperationContext(http.MethodGet, "/api/leaderboard")
	board.SetSummary("Leaderboard")
	board.SetDescription("Results ordered by score descending, then earliest completion.")
	board.AddReqStructure(LeaderboardQuery{})
	board.AddRespStructure([]quizboard.Standing{}, openapi.WithHTTPStatus(http.StatusOK))
	board.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(board)

	// GET /api/stats
	stats, _ := r.NewOperationContext(http.MethodGet, "/api/stats")
	stats.SetSummary("Aggregate stats")
	stats.SetDescription("Participant count and average, highest and lowest score. All zero when empty.")
	stats.AddRespStructure(quizboard.Stats{}, openapi.WithHTTPStatus(http.StatusOK))
	stats.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(stats)

	// GET /api/health
	liveness, _ := r.NewOperationContext(http.MethodGet, "/api/health")
	liveness.SetSummary("Liveness")
	liveness.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(liveness)

	// GET /api/events
	events, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	events.SetSummary("SSE event stream")
	events.SetDescription("Server-Sent Events: leaderboard-update on connect, then live-score-update, leaderboard-update and player-joined.")
	events.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(events)

	// GET /ws
	ws, _ := r.NewOperationContext(http.MethodGet, "/ws")
	ws.SetSummary("Live updates WebSocket")
	ws.SetDescription(`Frames are {"type": ..., "data": ...}. Send {"type":"join-quiz","data":{"playerName":"..."}} to announce a player to everyone else.`)
	ws.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(ws)

	// GET /healthz
	healthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	healthz.SetSummary("Dependency health")
	healthz.SetDescription("Checks SQLite and, when configured, Redis.")
	healthz.AddRespStructure(health.Report{}, openapi.WithHTTPStatus(http.StatusOK))
	healthz.AddRespStructure(health.Report{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(healthz)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func handleSwaggerUI() http.Handler {
	return v5emb.New("Quizboard API", "/openapi.json", "/docs")
}
