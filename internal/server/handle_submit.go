package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/quizboard/internal/quizboard"
)

func handleSubmitQuiz(logger *slog.Logger, svc *quizboard.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub quizboard.Submission
		if err := readJSON(w, r, &sub); err != nil {
			var verr *quizboard.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		receipt, err := svc.Submit(r.Context(), sub, clientIP(r))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, receipt)
	}
}
