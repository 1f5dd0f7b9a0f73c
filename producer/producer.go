package producer

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/heetch/relay/client"
	"github.com/heetch/relay/codec"
	"github.com/heetch/relay/config"
	"github.com/heetch/relay/conn"
	"github.com/heetch/relay/message"
)

// Option configures a Producer.
type Option func(*options)

type options struct {
	topic   string
	logger  *zap.Logger
	metrics conn.MetricsReporter
}

// Topic sets the topic messages are sent to. It defaults to the
// configured topic.
func Topic(topic string) Option {
	return func(o *options) {
		o.topic = topic
	}
}

// WithLogger sets the logger used by the producer. By default
// nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets a hook receiving connection and send metrics.
func WithMetrics(m conn.MetricsReporter) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Producer sends messages with payloads of type M to a single topic.
type Producer[M any] struct {
	topic   string
	encoder codec.Encoder[M]
	logger  *zap.Logger

	mu   sync.Mutex
	conn *conn.Machine[client.Producer]
	buf  bytes.Buffer
}

// New creates a Producer. It does not connect: the connection is
// made by the first call to Send.
func New[M any](cfg config.Config, driver client.Driver, enc codec.Encoder[M], opts ...Option) (*Producer[M], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, errors.New("producer: nil driver")
	}
	if enc == nil {
		return nil, errors.New("producer: nil encoder")
	}
	o := options{
		topic:  cfg.Topic,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.topic == "" {
		return nil, errors.New("producer: no topic configured")
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	logger := o.logger.With(zap.String("topic", o.topic))

	clientOpts := client.Build(cfg)
	p := &Producer[M]{
		topic:   o.topic,
		encoder: enc,
		logger:  logger,
	}
	p.conn = conn.New(int(cfg.ReconnectCount),
		func(context.Context) (client.Producer, error) {
			h, err := driver.NewProducer(clientOpts)
			return h, errors.Wrap(err, "cannot create producer")
		},
		driver.IsFatal,
		conn.WithLogger(logger),
		conn.WithMetrics(o.metrics),
		conn.WithReconnectSleep(time.Duration(cfg.ReconnectSleepMs)*time.Millisecond),
	)
	return p, nil
}

// Send encodes msg and sends it, waiting for the delivery report.
//
// A fatal client error triggers a reconnection and a new attempt until
// the reconnect budget is spent, in which case a conn.ExhaustedError
// is returned. The budget is restored at the start of each call.
// A conn.CodecError or a non-fatal conn.TransportError is returned
// without any further attempt.
func (p *Producer[M]) Send(ctx context.Context, msg message.KafkaMessage[M]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conn.Reset()
	for {
		if err := p.conn.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.conn.State() == conn.Exhausted {
				return err
			}
			continue
		}
		h, err := p.conn.Handle()
		if err != nil {
			return err
		}

		rec, err := p.record(msg)
		if err != nil {
			return p.conn.CodecFailure("encode", err)
		}
		err = h.Send(ctx, rec, 0)
		if err == nil {
			p.conn.Succeed("send")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.conn.Fail("send", err); err != nil {
			return err
		}
	}
}

// record builds the client record for msg. Its value points into
// p.buf and is only valid until the next call.
func (p *Producer[M]) record(msg message.KafkaMessage[M]) (*client.Record, error) {
	rec := &client.Record{
		Topic: p.topic,
		Key:   msg.KafkaKey(),
	}
	if ts, ok := msg.KafkaTimestampMs(); ok {
		rec.TimestampMs = &ts
	}
	p.buf.Reset()
	if v, ok := msg.KafkaValue(); ok {
		if err := p.encoder.Encode(v, &p.buf); err != nil {
			return nil, err
		}
		rec.Value = p.buf.Bytes()
		if rec.Value == nil {
			rec.Value = []byte{}
		}
	}
	return rec, nil
}

// Close releases the connection, if any. The Producer can still be
// used afterwards: the next Send reconnects.
func (p *Producer[M]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close()
}
