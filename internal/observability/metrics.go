package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-lms-backend/internal/services"
)

// otherEvent labels inbound socket events outside the protocol, so clients
// sending arbitrary names cannot grow the series count.
const otherEvent = "other"

var knownEvents = map[string]struct{}{
	services.EventJoinRoom:    {},
	services.EventLeaveRoom:   {},
	services.EventSendMessage: {},
	services.EventTyping:      {},
	"invalid":                 {},
}

// Metrics holds the domain collectors. It implements
// services.PaymentMetrics and realtime.Metrics.
type Metrics struct {
	settlements   *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	wsConnections prometheus.Gauge
	wsEvents      *prometheus.CounterVec
	wsSlow        prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. It panics
// if a collector is already registered, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ServiceNamespace,
			Name:      "payment_settlements_total",
			Help:      "Payment settlement attempts by source (client|webhook) and outcome.",
		}, []string{"source", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ServiceNamespace,
			Name:      "payment_webhook_events_total",
			Help:      "Gateway webhook deliveries by provider, event type and outcome.",
		}, []string{"provider", "type", "outcome"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ServiceNamespace,
			Name:      "ws_connections",
			Help:      "Currently open WebSocket connections.",
		}),
		wsEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ServiceNamespace,
			Name:      "ws_events_total",
			Help:      "Inbound WebSocket events by name and outcome.",
		}, []string{"event", "outcome"}),
		wsSlow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ServiceNamespace,
			Name:      "ws_slow_consumers_total",
			Help:      "Connections dropped because their send buffer was full.",
		}),
	}
	reg.MustRegister(m.settlements, m.webhookEvents, m.wsConnections, m.wsEvents, m.wsSlow)
	return m
}

func (m *Metrics) Settlement(source, outcome string) {
	m.settlements.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) WebhookEvent(provider, eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

func (m *Metrics) ConnectionOpened() { m.wsConnections.Inc() }
func (m *Metrics) ConnectionClosed() { m.wsConnections.Dec() }

func (m *Metrics) Event(event, outcome string) {
	if _, ok := knownEvents[event]; !ok {
		event = otherEvent
	}
	m.wsEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) SlowConsumer() { m.wsSlow.Inc() }
