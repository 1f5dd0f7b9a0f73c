package consumer

import (
	"context"
	"iter"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/heetch/relay/client"
	"github.com/heetch/relay/codec"
	"github.com/heetch/relay/config"
	"github.com/heetch/relay/conn"
	"github.com/heetch/relay/message"
)

// ErrNoTopics is yielded when a stream is started without topics and
// the configuration has no default topic.
var ErrNoTopics = errors.New("no topic to consume from")

// Consumer reads messages with payloads of type M.
type Consumer[M any] struct {
	cfg     config.Config
	driver  client.Driver
	decoder codec.Decoder[M]
	opts    options
}

// New creates a Consumer. The configuration must have a group id.
func New[M any](cfg config.Config, driver client.Driver, dec codec.Decoder[M], opts ...Option) (*Consumer[M], error) {
	if err := cfg.ValidateConsumer(); err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, errors.New("consumer: nil driver")
	}
	if dec == nil {
		return nil, errors.New("consumer: nil decoder")
	}
	c := &Consumer[M]{
		cfg:     cfg,
		driver:  driver,
		decoder: dec,
		opts: options{
			logger: zap.NewNop(),
		},
	}
	for _, o := range opts {
		o(&c.opts)
	}
	if c.opts.logger == nil {
		c.opts.logger = zap.NewNop()
	}
	return c, nil
}

// Stream returns a sequence of the messages received from topics, or
// from the configured topic when none is given.
//
// Each iteration over the sequence opens its own connection, which is
// closed when the iteration stops. Failed connection attempts and
// fatal errors are not yielded: they trigger a reconnection until the
// reconnect budget is spent, at which point a final
// conn.ExhaustedError is yielded. Other errors are yielded and the
// sequence goes on with the same connection.
//
// The sequence ends without a further item when ctx is done.
func (c *Consumer[M]) Stream(ctx context.Context, topics ...string) iter.Seq2[*message.Message[M], error] {
	if len(topics) == 0 && c.cfg.Topic != "" {
		topics = []string{c.cfg.Topic}
	}
	return func(yield func(*message.Message[M], error) bool) {
		if len(topics) == 0 {
			yield(nil, ErrNoTopics)
			return
		}
		logger := c.opts.logger.With(zap.Strings("topics", topics))
		opts := client.Build(c.cfg)
		m := conn.New(int(c.cfg.ReconnectCount),
			func(context.Context) (client.Consumer, error) {
				return c.connect(opts, topics)
			},
			c.driver.IsFatal,
			conn.WithLogger(logger),
			conn.WithMetrics(c.opts.metrics),
			conn.WithReconnectSleep(time.Duration(c.cfg.ReconnectSleepMs)*time.Millisecond),
		)
		defer func() {
			if err := m.Close(); err != nil {
				logger.Warn("cannot close consumer", zap.Error(err))
			}
		}()

		for ctx.Err() == nil {
			if err := m.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if m.State() == conn.Exhausted {
					yield(nil, err)
					return
				}
				continue
			}
			h, err := m.Handle()
			if err != nil {
				yield(nil, err)
				return
			}

			rec, err := h.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err := m.Fail("receive", err); err != nil && !yield(nil, err) {
					return
				}
				continue
			}

			msg, err := c.decode(rec)
			if err != nil {
				logger.Debug("cannot decode message",
					zap.Int32("partition", rec.Partition),
					zap.Int64("offset", rec.Offset),
					zap.Error(err),
				)
				if !yield(nil, m.CodecFailure("decode", err)) {
					return
				}
				continue
			}
			m.Succeed("receive")
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func (c *Consumer[M]) connect(opts client.Options, topics []string) (client.Consumer, error) {
	h, err := c.driver.NewConsumer(opts)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create consumer")
	}
	if err := h.Subscribe(topics); err != nil {
		if cerr := h.Close(); cerr != nil {
			c.opts.logger.Warn("cannot close kafka handle", zap.Error(cerr))
		}
		return nil, errors.Wrapf(err, "cannot subscribe to %q", topics)
	}
	return h, nil
}

func (c *Consumer[M]) decode(rec *client.Record) (*message.Message[M], error) {
	msg := &message.Message[M]{
		Meta: message.Meta{
			Key:         rec.Key,
			TimestampMs: rec.TimestampMs,
			Partition:   rec.Partition,
		},
	}
	if rec.Value != nil {
		v, err := c.decoder.Decode(rec.Value)
		if err != nil {
			return nil, err
		}
		msg.Payload = &v
	}
	return msg, nil
}
