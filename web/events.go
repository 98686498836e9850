package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"travelbook/mq/mq"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// newUpgrader accepts any origin in development; otherwise the origin must
// match the request host.
func newUpgrader(development bool) *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if development {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return u
}

// streamEvents pushes every committed order change to the client as JSON
// until the client goes away.
func (s *Server) streamEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream is disabled"})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// subscribe before the upgrade so no event after the handshake is missed
	out := make(chan mq.OrderMessage)
	keep := func(msg mq.OrderMessage) (mq.OrderMessage, bool, error) { return msg, false, nil }
	if err := mq.SubscribeProcessor(ctx, s.events, keep, out); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// the read loop only notices pongs and the client closing
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
