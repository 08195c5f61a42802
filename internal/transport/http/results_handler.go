package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"course-quiz-service/internal/app"
	"course-quiz-service/internal/domain"
	"go.uber.org/zap"
)

// ResultsHandler serves stored results of completed sessions.
type ResultsHandler struct {
	service *app.QuizService
	logger  *zap.Logger
}

func NewResultsHandler(service *app.QuizService, logger *zap.Logger) *ResultsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsHandler{service: service, logger: logger}
}

func (h *ResultsHandler) ServeResults(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	result, err := h.service.Results(r.Context(), sessionID)
	if errors.Is(err, domain.ErrResultsNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("load results", zap.String("session", sessionID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// ServeReload drops the cached copy of a quiz so edited content is served
// to the next session.
func (h *ResultsHandler) ServeReload(w http.ResponseWriter, r *http.Request) {
	quizID := r.PathValue("quizId")
	if err := h.service.ReloadQuiz(r.Context(), quizID); err != nil {
		h.logger.Error("reload quiz", zap.String("quiz", quizID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NewRouter mounts the health, websocket, results and quiz reload endpoints.
func NewRouter(service *app.QuizService, logger *zap.Logger) http.Handler {
	ws := NewWSHandler(service, logger)
	results := NewResultsHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("GET /results/{sessionId}", results.ServeResults)
	mux.HandleFunc("POST /quizzes/{quizId}/reload", results.ServeReload)
	return mux
}
