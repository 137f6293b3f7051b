package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/curry-conqueror/NSTEM-Final/internal/party"
)

const wsWriteTimeout = 5 * time.Second

// handleWS pushes the same events as handleEvents over a WebSocket. Client
// messages are ignored.
func handleWS(logger *slog.Logger, repo *party.Repository, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := partyCode(r)
		if _, err := repo.GetParty(r.Context(), code); err != nil {
			writeRepoError(w, logger, repo, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ch, err := broker.Subscribe(code)
		if err != nil {
			logger.Error("party feed failed", "code", code, "error", err)
			conn.Close(websocket.StatusInternalError, msgTryAgain)
			return
		}
		defer broker.Unsubscribe(code, ch)

		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket closed", "code", code, "error", ctx.Err())
				return
			case data, ok := <-ch:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "server shutting down")
					return
				}
				if err := writeWS(ctx, conn, data); err != nil {
					logger.Debug("websocket write failed", "code", code, "error", err)
					return
				}
			}
		}
	}
}

func writeWS(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// eventType extracts the type of an encoded PartyEvent.
func eventType(data []byte) string {
	var ev struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
		return "message"
	}
	return ev.Type
}
