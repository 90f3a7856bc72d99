package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"brainbolt/internal/domain"
)

// WSHandler streams leaderboard updates over a websocket. Clients get an
// initial snapshot on connect and a push after every accepted answer.
type WSHandler struct {
	handler  *Handler
	upgrader websocket.Upgrader
}

func NewWSHandler(handler *Handler) *WSHandler {
	return &WSHandler{
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and forwards leaderboard updates until the
// client disconnects. All writes happen on this goroutine.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.handler.service.Subscribe()
	defer cancel()

	if initial, ok := h.snapshot(r); ok {
		if err := conn.WriteJSON(initial); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *WSHandler) snapshot(r *http.Request) (domain.LeaderboardUpdate, bool) {
	ctx := r.Context()
	score, err := h.handler.service.ScoreLeaderboard(ctx, 0)
	if err != nil {
		return domain.LeaderboardUpdate{}, false
	}
	streak, err := h.handler.service.StreakLeaderboard(ctx, 0)
	if err != nil {
		return domain.LeaderboardUpdate{}, false
	}
	return domain.LeaderboardUpdate{Score: score, Streak: streak}, true
}
