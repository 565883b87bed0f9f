package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the gateway, the workflow
// engine and the HTTP layer. All methods are nil-safe so collaborators can be
// built without metrics in tests.
type Metrics struct {
	GatewayDecisions   *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	StaleConflicts     *prometheus.CounterVec
	PaymentExpiries    prometheus.Counter
	NotificationErrors *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
	SessionsHydrated   *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GatewayDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "housing_gateway_decisions_total",
			Help: "Navigation decisions by area and outcome",
		}, []string{"area", "outcome"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "housing_workflow_transitions_total",
			Help: "Workflow transition attempts by request kind, action and result",
		}, []string{"kind", "action", "result"}),
		StaleConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "housing_workflow_stale_conflicts_total",
			Help: "Transitions that lost a compare-and-swap race",
		}, []string{"kind", "action"}),
		PaymentExpiries: factory.NewCounter(prometheus.CounterOpts{
			Name: "housing_workflow_payment_expiries_total",
			Help: "Room bookings rejected because the payment window elapsed",
		}),
		NotificationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "housing_notification_errors_total",
			Help: "Failed notification deliveries by sink",
		}, []string{"sink"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "housing_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method", "status"}),
		SessionsHydrated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "housing_sessions_hydrated_total",
			Help: "Session hydrations by resulting state",
		}, []string{"state"}),
	}
}

func (m *Metrics) ObserveDecision(area, outcome string) {
	if m != nil {
		m.GatewayDecisions.WithLabelValues(area, outcome).Inc()
	}
}

func (m *Metrics) ObserveTransition(kind, action, result string) {
	if m != nil {
		m.Transitions.WithLabelValues(kind, action, result).Inc()
	}
}

func (m *Metrics) IncStaleConflict(kind, action string) {
	if m != nil {
		m.StaleConflicts.WithLabelValues(kind, action).Inc()
	}
}

func (m *Metrics) IncPaymentExpiry() {
	if m != nil {
		m.PaymentExpiries.Inc()
	}
}

func (m *Metrics) IncNotificationError(sink string) {
	if m != nil {
		m.NotificationErrors.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveHydration(state string) {
	if m != nil {
		m.SessionsHydrated.WithLabelValues(state).Inc()
	}
}
