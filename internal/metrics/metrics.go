package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Métricas del servicio. Viven en un paquete aparte para que realtime, vault y
// http las usen sin ciclos de import.

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	EnvelopeVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "envelope_verifications_total",
		Help: "Verificaciones de initData por resultado",
	}, []string{"result"}) // ok|rejected

	RateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Decisiones del rate limiter por acción",
	}, []string{"action", "result"}) // allowed|denied|error

	VaultOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_operations_total",
		Help: "Operaciones del vault de claves",
	}, []string{"op", "result"})

	RealtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Conexiones realtime registradas",
	})

	RealtimeDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_deliveries_total",
		Help: "Entregas de notificaciones por resultado",
	}, []string{"kind", "result"}) // delivered|dropped
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal, HTTPRequestDuration, EnvelopeVerifications,
		RateDecisions, VaultOperations, RealtimeConnections, RealtimeDeliveries,
	}
}

// Register registra las métricas en reg (o el default si es nil). Registrar dos
// veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// Handler expone /metrics del gatherer dado (o el default si es nil).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
