// Package metrics exports connection metrics of consumers and
// producers to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heetch/relay/conn"
)

const namespace = "relay"

// Reporter holds the relay collectors. Use Consumer and Producer to
// get the hooks to pass to each side.
type Reporter struct {
	connects   *prometheus.CounterVec
	operations *prometheus.CounterVec
	exhausted  *prometheus.CounterVec
}

// New creates the relay collectors and registers them with reg.
// It panics if they are already registered.
func New(reg prometheus.Registerer) *Reporter {
	f := promauto.With(reg)
	return &Reporter{
		connects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts to Kafka, by client kind and result.",
		}, []string{"client", "result"}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Receive and send operations, by client kind and outcome.",
		}, []string{"client", "op", "outcome"}),
		exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_budget_exhausted_total",
			Help:      "Times a client gave up after spending its reconnect budget.",
		}, []string{"client"}),
	}
}

// Consumer returns the hook for consumers.
func (r *Reporter) Consumer() conn.MetricsReporter {
	return hook{r: r, client: "consumer"}
}

// Producer returns the hook for producers.
func (r *Reporter) Producer() conn.MetricsReporter {
	return hook{r: r, client: "producer"}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type hook struct {
	r      *Reporter
	client string
}

func (h hook) ConnectAttempt(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	h.r.connects.WithLabelValues(h.client, result).Inc()
}

func (h hook) Operation(op string, o conn.Outcome) {
	h.r.operations.WithLabelValues(h.client, op, o.String()).Inc()
}

func (h hook) Exhausted(error) {
	h.r.exhausted.WithLabelValues(h.client).Inc()
}
