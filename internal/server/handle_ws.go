package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/quizboard/internal/live"
)

// clientMessage is a frame sent by a WebSocket client.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinQuiz struct {
	PlayerName string `json:"playerName"`
}

// PlayerJoined is the player-joined payload.
type PlayerJoined struct {
	PlayerName string    `json:"playerName"`
	Timestamp  time.Time `json:"timestamp"`
}

// handleLive upgrades to a WebSocket subscribed to the hub. The client
// first receives the current leaderboard, then every published event.
func handleLive(logger *slog.Logger, hub *live.Hub, broadcaster *live.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		sub, err := hub.Subscribe()
		if err != nil {
			conn.Close(websocket.StatusTryAgainLater, "live updates unavailable")
			return
		}
		defer hub.Unsubscribe(sub.ID)
		logger.Debug("live subscriber connected", "subscriber", sub.ID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go func() {
			defer cancel()
			readClient(ctx, logger, conn, hub, sub.ID)
		}()

		if err := broadcaster.Welcome(ctx, sub.ID); err != nil {
			logger.Warn("initial leaderboard not sent", "subscriber", sub.ID, "error", err)
		}

		for {
			select {
			case <-ctx.Done():
				logger.Debug("live subscriber disconnected", "subscriber", sub.ID)
				return
			case msg, ok := <-sub.C:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "server shutting down")
					return
				}
				if err := wsjson.Write(ctx, conn, msg); err != nil {
					logger.Debug("websocket write failed", "subscriber", sub.ID, "error", err)
					return
				}
			}
		}
	}
}

// readClient handles inbound frames until the connection ends. Only
// join-quiz is understood; other frames are ignored.
func readClient(ctx context.Context, logger *slog.Logger, conn *websocket.Conn, hub *live.Hub, subID string) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			logger.Debug("websocket read ended", "subscriber", subID, "error", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("ignoring malformed websocket frame", "subscriber", subID, "error", err)
			continue
		}
		if msg.Type != live.EventJoinQuiz {
			continue
		}

		var join joinQuiz
		if err := json.Unmarshal(msg.Data, &join); err != nil {
			continue
		}
		name := strings.TrimSpace(join.PlayerName)
		if name == "" {
			continue
		}

		err = hub.PublishExcept(subID, live.EventPlayerJoined, PlayerJoined{
			PlayerName: name,
			Timestamp:  time.Now().UTC(),
		})
		if err != nil {
			logger.Warn("player-joined not published", "player", name, "error", err)
		}
	}
}
