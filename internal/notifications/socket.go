package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/quangtran/dinehub-backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// joinCommand is the only inbound frame subscribers send.
type joinCommand struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// ServeConn pumps a websocket connection against the hub until either side
// drops. Inbound frames are join commands; everything else flows outward.
func ServeConn(ctx context.Context, hub *Hub, logg *logger.Logger, conn *websocket.Conn, identity Identity) {
	sub := hub.Subscribe(identity)
	defer sub.Close()
	defer conn.Close()

	go writePump(conn, sub)
	readPump(ctx, conn, sub, logg)
}

func readPump(ctx context.Context, conn *websocket.Conn, sub *Subscriber, logg *logger.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logg.Warn(logg.WithField(ctx, "close_error", err.Error()), "websocket closed unexpectedly")
			}
			return
		}
		var cmd joinCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			logg.Debug(ctx, "ignoring malformed socket frame")
			continue
		}
		applyJoin(sub, cmd)
	}
}

func applyJoin(sub *Subscriber, cmd joinCommand) {
	id, err := uuid.Parse(cmd.ID)
	if err != nil {
		return
	}
	switch cmd.Action {
	case "joinOrder":
		sub.JoinOrder(id)
	case "joinTable":
		sub.JoinTable(id)
	}
}

func writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case envelope, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
