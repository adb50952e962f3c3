// Package realtime mantiene a lo sumo una conexión viva por identidad y empuja
// notificaciones (send a una identidad, broadcast a todas).
//
// Reglas del registro:
//   - Admit verifica el envelope; si falla cierra el transporte y no registra nada.
//   - Re-admitir una identidad reemplaza la entrada SIN cerrar el transporte viejo.
//   - Remove sólo borra si la entrada sigue siendo la del transporte dado, así el
//     cierre tardío de una conexión vieja no borra a la nueva.
//   - El lock nunca se mantiene durante una escritura.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/cipherpool/internal/domain/errs"
	"github.com/dropDatabas3/cipherpool/internal/metrics"
	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
	"github.com/dropDatabas3/cipherpool/internal/security/envelope"
)

var ErrHubClosed = errs.New(errs.KindTransient, "REALTIME_CLOSED")

// Transport es el canal bidireccional de un cliente (websocket en producción).
type Transport interface {
	Write(ctx context.Context, frame []byte) error
	Close(reason string) error
}

// Verifier valida un envelope crudo (envelope.Verifier).
type Verifier interface {
	Verify(raw string) (envelope.Identity, error)
}

// Notification es el frame JSON que recibe el cliente.
type Notification struct {
	Kind   string    `json:"kind"`
	Body   any       `json:"body,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

// Outcome de un Send. Dropped es un resultado normal, no un error.
type Outcome int

const (
	Dropped Outcome = iota
	Delivered
)

func (o Outcome) String() string {
	if o == Delivered {
		return "delivered"
	}
	return "dropped"
}

type entry struct {
	t      Transport
	connID string
}

// Options de construcción.
type Options struct {
	WriteTimeout time.Duration // por escritura; default 5s
	MaxAge       time.Duration // frescura del envelope en Admit; 0 = sin chequeo
	Fanout       int           // escrituras concurrentes en Broadcast; default 32
	Now          func() time.Time
}

type Hub struct {
	verifier Verifier
	opts     Options

	mu     sync.Mutex
	conns  map[string]*entry
	closed bool
}

func NewHub(v Verifier, opts Options) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Fanout <= 0 {
		opts.Fanout = 32
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{verifier: v, opts: opts, conns: make(map[string]*entry)}
}

// Admit autentica el transporte y lo registra como la conexión viva de la identidad.
func (h *Hub) Admit(ctx context.Context, t Transport, rawEnvelope string) (envelope.Identity, error) {
	log := logger.From(ctx).With(logger.Component("realtime"))

	id, err := h.verifier.Verify(rawEnvelope)
	if err == nil {
		err = envelope.CheckFreshness(id, h.opts.MaxAge, h.opts.Now())
	}
	if err != nil {
		metrics.EnvelopeVerifications.WithLabelValues("rejected").Inc()
		log.Info("realtime_admit_rejected", logger.Kind(string(errs.KindOf(err))))
		_ = t.Close("unauthenticated")
		return envelope.Identity{}, err
	}
	metrics.EnvelopeVerifications.WithLabelValues("ok").Inc()

	e := &entry{t: t, connID: uuid.NewString()}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = t.Close("shutting down")
		return envelope.Identity{}, ErrHubClosed
	}
	_, replaced := h.conns[id.ID]
	h.conns[id.ID] = e
	n := len(h.conns)
	h.mu.Unlock()

	metrics.RealtimeConnections.Set(float64(n))
	log.Info("realtime_admitted",
		logger.Identity(id.ID), logger.ConnID(e.connID), zap.Bool("replaced", replaced))
	return id, nil
}

// Send entrega n a la conexión viva de identity. Nunca crea entradas.
func (h *Hub) Send(ctx context.Context, identity string, n Notification) Outcome {
	h.mu.Lock()
	e, ok := h.conns[identity]
	h.mu.Unlock()
	if !ok {
		metrics.RealtimeDeliveries.WithLabelValues(n.Kind, Dropped.String()).Inc()
		return Dropped
	}
	frame, err := h.encode(n)
	if err != nil {
		logger.From(ctx).Error("realtime_encode_failed", logger.Err(err))
		return Dropped
	}
	out := h.deliver(ctx, identity, e, frame)
	metrics.RealtimeDeliveries.WithLabelValues(n.Kind, out.String()).Inc()
	return out
}

// Broadcast envía n a todas las conexiones registradas al momento de la llamada
// y devuelve cuántas entregas salieron bien. Un fallo no frena al resto.
func (h *Hub) Broadcast(ctx context.Context, n Notification) int {
	type target struct {
		identity string
		e        *entry
	}
	h.mu.Lock()
	snapshot := make([]target, 0, len(h.conns))
	for id, e := range h.conns {
		snapshot = append(snapshot, target{identity: id, e: e})
	}
	h.mu.Unlock()

	frame, err := h.encode(n)
	if err != nil {
		logger.From(ctx).Error("realtime_encode_failed", logger.Err(err))
		return 0
	}

	var delivered atomic.Int64
	var g errgroup.Group
	g.SetLimit(h.opts.Fanout)
	for _, tg := range snapshot {
		tg := tg
		g.Go(func() error {
			if h.deliver(ctx, tg.identity, tg.e, frame) == Delivered {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	d := int(delivered.Load())
	metrics.RealtimeDeliveries.WithLabelValues(n.Kind, Delivered.String()).Add(float64(d))
	metrics.RealtimeDeliveries.WithLabelValues(n.Kind, Dropped.String()).Add(float64(len(snapshot) - d))
	logger.From(ctx).Debug("realtime_broadcast",
		zap.String("notification", n.Kind), logger.Count(d), zap.Int("targets", len(snapshot)))
	return d
}

// Remove borra la entrada de identity sólo si sigue apuntando a t.
func (h *Hub) Remove(identity string, t Transport) bool {
	h.mu.Lock()
	e, ok := h.conns[identity]
	if !ok || e.t != t {
		h.mu.Unlock()
		return false
	}
	delete(h.conns, identity)
	n := len(h.conns)
	h.mu.Unlock()
	metrics.RealtimeConnections.Set(float64(n))
	return true
}

// Len devuelve la cantidad de identidades conectadas.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close cierra todos los transportes y rechaza nuevas admisiones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := h.conns
	h.conns = make(map[string]*entry)
	h.mu.Unlock()

	for _, e := range conns {
		_ = e.t.Close("shutting down")
	}
	metrics.RealtimeConnections.Set(0)
	return nil
}

func (h *Hub) deliver(ctx context.Context, identity string, e *entry, frame []byte) Outcome {
	wctx, cancel := context.WithTimeout(ctx, h.opts.WriteTimeout)
	defer cancel()
	if err := e.t.Write(wctx, frame); err != nil {
		if h.removeEntry(identity, e) {
			_ = e.t.Close("write failed")
		}
		logger.From(ctx).Info("realtime_write_failed",
			logger.Identity(identity), logger.ConnID(e.connID), logger.Err(err))
		return Dropped
	}
	return Delivered
}

func (h *Hub) removeEntry(identity string, e *entry) bool {
	h.mu.Lock()
	cur, ok := h.conns[identity]
	if !ok || cur != e {
		h.mu.Unlock()
		return false
	}
	delete(h.conns, identity)
	n := len(h.conns)
	h.mu.Unlock()
	metrics.RealtimeConnections.Set(float64(n))
	return true
}

func (h *Hub) encode(n Notification) ([]byte, error) {
	if n.SentAt.IsZero() {
		n.SentAt = h.opts.Now().UTC()
	}
	return json.Marshal(n)
}
