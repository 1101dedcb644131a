package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/racetrack/internal/racetrack"
	"github.com/playperu/racetrack/internal/tracker"
)

// WSMessage is pushed to WebSocket subscribers.
type WSMessage struct {
	Type    string           `json:"type"`
	Board   *racetrack.Board `json:"board,omitempty"`
	Warning string           `json:"warning,omitempty"`
}

func handleWSStandings(logger *slog.Logger, tr *tracker.Tracker, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ch := broker.Subscribe()
		defer broker.Unsubscribe(ch)

		// Subscribers only listen; the read side just tracks the close.
		ctx := conn.CloseRead(r.Context())

		send := func(ev tracker.Event) error {
			msg := WSMessage{Type: ev.Type, Warning: ev.Warning}
			if ev.Type == tracker.EventState {
				board := tr.Standings()
				msg.Board = &board
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return wsjson.Write(wctx, conn, msg)
		}

		if err := send(tracker.Event{Type: tracker.EventState}); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket closed", "error", ctx.Err())
				return
			case ev := <-ch:
				if err := send(ev); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
