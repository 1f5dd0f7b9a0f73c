package consumer

import (
	"go.uber.org/zap"

	"github.com/heetch/relay/conn"
)

// Option configures a Consumer.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics conn.MetricsReporter
}

// WithLogger sets the logger used by the consumer. By default
// nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets a hook receiving connection and receive metrics.
func WithMetrics(m conn.MetricsReporter) Option {
	return func(o *options) {
		o.metrics = m
	}
}
