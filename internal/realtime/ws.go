package realtime

import (
	"context"
	"sync"

	"github.com/coder/websocket"
)

// WSTransport adapta una conexión coder/websocket a Transport.
type WSTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func NewWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

func (w *WSTransport) Write(ctx context.Context, frame []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, frame)
}

// Close es idempotente. "unauthenticated" viaja como policy violation.
func (w *WSTransport) Close(reason string) error {
	var err error
	w.closeOnce.Do(func() {
		code := websocket.StatusNormalClosure
		switch reason {
		case "unauthenticated":
			code = websocket.StatusPolicyViolation
		case "shutting down":
			code = websocket.StatusGoingAway
		}
		err = w.conn.Close(code, reason)
	})
	return err
}
