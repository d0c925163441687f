package http

import (
	"net/http"
	"time"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

type leaderboardHandler struct {
	service  *app.LeaderboardService
	upgrader websocket.Upgrader
}

func newLeaderboardHandler(service *app.LeaderboardService) *leaderboardHandler {
	return &leaderboardHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (h *leaderboardHandler) top(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Top(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entries)
}

// serveWS streams leaderboard snapshots: one on connect, then one per graded attempt.
// Clients only listen; anything they send is ignored.
func (h *leaderboardHandler) serveWS(w http.ResponseWriter, r *http.Request) {
	log := config.WithContext(r.Context())

	// Subscribe before the first snapshot so no update between the two is lost.
	updates, cancel := h.service.Subscribe()
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	snapshot, err := h.service.Top(r.Context())
	if err != nil {
		_ = writeWS(conn, outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: "Failed to load leaderboard."}})
		log.WithError(err).Error("leaderboard snapshot failed")
		return
	}
	if err := writeWS(conn, outboundMessage[[]domain.LeaderboardEntry]{Type: "leaderboard", Payload: snapshot}); err != nil {
		return
	}

	// The reader only drains control frames and notices when the peer goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case entries, ok := <-updates:
			if !ok {
				return
			}
			if err := writeWS(conn, outboundMessage[[]domain.LeaderboardEntry]{Type: "leaderboard", Payload: entries}); err != nil {
				log.WithError(err).Debug("ws write failed")
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeWS(conn *websocket.Conn, msg any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}
