// Package confluent implements client.Driver on top of
// confluent-kafka-go, which wraps librdkafka.
package confluent

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heetch/relay/client"
)

// pollTimeoutMs bounds how long a consumer waits for an event before
// checking its context again.
const pollTimeoutMs = 100

// Properties that only make sense for one kind of handle. librdkafka
// warns when it is given the other kind's properties.
var (
	consumerOnly = []string{
		client.GroupID,
		client.EnablePartitionEOF,
		client.SessionTimeoutMs,
		client.EnableAutoCommit,
		client.AutoOffsetReset,
	}
	producerOnly = []string{
		client.MessageTimeoutMs,
		client.QueueBufferingMaxKBytes,
		client.Partitioner,
	}
)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger librdkafka logs are forwarded to.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// Driver builds librdkafka consumers and producers.
type Driver struct {
	logger *zap.Logger
}

var _ client.Driver = (*Driver)(nil)

// New returns a Driver.
func New(opts ...Option) *Driver {
	d := &Driver{logger: zap.NewNop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Driver) NewConsumer(opts client.Options) (client.Consumer, error) {
	logs := make(chan kafka.LogEvent, 64)
	c, err := kafka.NewConsumer(configMap(opts, producerOnly, logs))
	if err != nil {
		return nil, err
	}
	return &consumer{
		c:      c,
		logger: d.logger,
		logs:   forwardLogs(d.logger, logs),
	}, nil
}

func (d *Driver) NewProducer(opts client.Options) (client.Producer, error) {
	logs := make(chan kafka.LogEvent, 64)
	p, err := kafka.NewProducer(configMap(opts, consumerOnly, logs))
	if err != nil {
		return nil, err
	}
	return newProducer(p, d.logger, forwardLogs(d.logger, logs)), nil
}

func (d *Driver) IsFatal(err error) bool {
	return IsFatal(err)
}

// IsFatal reports whether err is a librdkafka error after which the
// handle that returned it cannot be used any more.
func IsFatal(err error) bool {
	var kerr kafka.Error
	if !errors.As(err, &kerr) {
		return false
	}
	return kerr.IsFatal() || kerr.TxnRequiresAbort()
}

// configMap returns the librdkafka configuration for opts, without
// the properties in skip. Client logs are sent to logs.
func configMap(opts client.Options, skip []string, logs chan kafka.LogEvent) *kafka.ConfigMap {
	cm := make(kafka.ConfigMap, len(opts)+2)
	for k, v := range opts {
		cm[k] = v
	}
	for _, k := range skip {
		delete(cm, k)
	}
	cm["go.logs.channel.enable"] = true
	cm["go.logs.channel"] = logs
	return &cm
}

// logForwarder sends librdkafka logs to a zap logger until closed.
type logForwarder struct {
	logs chan kafka.LogEvent
	done chan struct{}
}

func forwardLogs(logger *zap.Logger, logs chan kafka.LogEvent) *logForwarder {
	f := &logForwarder{
		logs: logs,
		done: make(chan struct{}),
	}
	logger = logger.Named("librdkafka")
	go func() {
		defer close(f.done)
		for ev := range logs {
			if ce := logger.Check(zapLevel(ev.Level), ev.Message); ce != nil {
				ce.Write(
					zap.String("name", ev.Name),
					zap.String("tag", ev.Tag),
				)
			}
		}
	}()
	return f
}

// close must only be called once the client handle is closed.
func (f *logForwarder) close() {
	close(f.logs)
	<-f.done
}

// zapLevel maps a syslog level onto a zap level.
func zapLevel(level int) zapcore.Level {
	switch {
	case level <= 3:
		return zapcore.ErrorLevel
	case level == 4:
		return zapcore.WarnLevel
	case level <= 6:
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}
