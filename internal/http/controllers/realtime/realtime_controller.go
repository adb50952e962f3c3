// Package realtime contiene el endpoint websocket del hub.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/dropDatabas3/cipherpool/internal/http/dto"
	"github.com/dropDatabas3/cipherpool/internal/http/middlewares"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/realtime"
	"github.com/dropDatabas3/cipherpool/internal/security/envelope"
)

// maxInboundFrame acota lo que aceptamos del cliente: sólo hello y pings.
const maxInboundFrame = 8 << 10

// Hub es lo que el controller necesita del RealtimeHub.
type Hub interface {
	Admit(ctx context.Context, t realtime.Transport, rawEnvelope string) (envelope.Identity, error)
	Remove(identity string, t realtime.Transport) bool
}

type RealtimeController struct {
	hub              Hub
	originPatterns   []string
	handshakeTimeout time.Duration
}

func NewRealtimeController(hub Hub, originPatterns []string, handshakeTimeout time.Duration) *RealtimeController {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	return &RealtimeController{hub: hub, originPatterns: originPatterns, handshakeTimeout: handshakeTimeout}
}

// Connect maneja GET /v1/realtime. El envelope llega en ?auth= (o en el header
// tma); si no, el primer frame debe ser {"auth": "<initData>"}.
func (c *RealtimeController) Connect(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("RealtimeController.Connect"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: c.originPatterns})
	if err != nil {
		// Accept ya escribió la respuesta HTTP
		log.Debug("websocket accept failed", logger.Err(err))
		return
	}
	conn.SetReadLimit(maxInboundFrame)
	t := realtime.NewWSTransport(conn)

	ctx := r.Context()
	raw := middlewares.EnvelopeFromRequest(r)
	if raw == "" {
		raw = c.readHello(ctx, conn)
	}

	id, err := c.hub.Admit(ctx, t, raw)
	if err != nil {
		// Admit ya cerró el transporte
		return
	}
	defer func() {
		c.hub.Remove(id.ID, t)
		_ = t.Close("")
	}()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			log.Debug("realtime connection closed", logger.Identity(id.ID), logger.Any("status", websocket.CloseStatus(err)))
			return
		}
	}
}

// readHello espera el primer frame dentro del timeout de handshake. Cualquier
// falla devuelve "" y Admit lo rechaza.
func (c *RealtimeController) readHello(ctx context.Context, conn *websocket.Conn) string {
	hctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()

	typ, data, err := conn.Read(hctx)
	if err != nil || typ != websocket.MessageText {
		return ""
	}
	var hello dto.RealtimeHello
	if err := json.Unmarshal(data, &hello); err != nil {
		return ""
	}
	return hello.Auth
}
