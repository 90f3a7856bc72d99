// Package http exposes the quiz endpoints. Authentication and rate limiting
// are external collaborators: this layer only extracts the caller identity
// from the X-User-ID header and rejects requests without one.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"brainbolt/internal/app"
	"brainbolt/internal/domain"
	"brainbolt/internal/integrity"
)

const userIDHeader = "X-User-ID"

type Handler struct {
	service *app.SessionService
}

func NewHandler(service *app.SessionService) *Handler {
	return &Handler{service: service}
}

// Register wires every endpoint onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/quiz/next", h.withUser(http.MethodGet, h.nextQuestion))
	mux.HandleFunc("/api/quiz/answer", h.withUser(http.MethodPost, h.submitAnswer))
	mux.HandleFunc("/api/quiz/metrics", h.withUser(http.MethodGet, h.metrics))
	mux.HandleFunc("/api/leaderboard/score", h.board(h.service.ScoreLeaderboard))
	mux.HandleFunc("/api/leaderboard/streak", h.board(h.service.StreakLeaderboard))
}

func (h *Handler) nextQuestion(w http.ResponseWriter, r *http.Request, userID string) {
	next, err := h.service.NextQuestion(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request, userID string) {
	var sub domain.AnswerSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if sub.QuestionID == "" || sub.SessionID == "" || sub.IdempotencyKey == "" {
		writeMessage(w, http.StatusBadRequest, "questionId, sessionId and answerIdempotencyKey are required")
		return
	}
	if sub.Answer < 0 || sub.Answer >= integrity.ChoiceCount {
		writeMessage(w, http.StatusBadRequest, domain.ErrInvalidAnswerIndex.Error())
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), userID, sub)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request, userID string) {
	metrics, err := h.service.Metrics(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *Handler) board(top func(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rows, err := top(r.Context(), parseLimit(r))
		if err != nil {
			h.writeError(w, err)
			return
		}
		if rows == nil {
			rows = []domain.LeaderboardRow{}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (h *Handler) withUser(method string, next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			writeMessage(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
			return
		}
		next(w, r, userID)
	}
}

// writeError maps business outcomes onto client-facing statuses; only
// unexpected failures are logged and hidden behind a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAnswerIndex),
		errors.Is(err, domain.ErrNoActiveSession):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrNoQuestionsAvailable):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionMismatch),
		errors.Is(err, domain.ErrStaleStateVersion),
		errors.Is(err, domain.ErrVersionConflict):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		logrus.WithError(err).Error("request failed")
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 100 {
		return 0
	}
	return limit
}
