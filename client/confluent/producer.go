package confluent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/heetch/relay/client"
)

type producer struct {
	p      *kafka.Producer
	logger *zap.Logger
	logs   *logForwarder
	events chan struct{}

	// fatal holds the first fatal error reported out of band.
	fatal atomic.Pointer[kafka.Error]
}

func newProducer(p *kafka.Producer, logger *zap.Logger, logs *logForwarder) *producer {
	pr := &producer{
		p:      p,
		logger: logger,
		logs:   logs,
		events: make(chan struct{}),
	}
	go pr.drainEvents()
	return pr
}

// drainEvents handles the events that are not delivery reports of a
// Send. It returns when the producer is closed.
func (p *producer) drainEvents() {
	defer close(p.events)
	for ev := range p.p.Events() {
		switch e := ev.(type) {
		case kafka.Error:
			if IsFatal(e) {
				p.fatal.CompareAndSwap(nil, &e)
			}
			p.logger.Warn("kafka client error", zap.Error(e), zap.Stringer("code", e.Code()))
		case *kafka.Message:
			// A delivery report for a Send that gave up waiting.
			if e.TopicPartition.Error != nil {
				p.logger.Warn("late delivery failure", zap.Error(e.TopicPartition.Error))
			}
		}
	}
}

func (p *producer) Send(ctx context.Context, rec *client.Record, queueTimeout time.Duration) error {
	if fatal := p.fatal.Load(); fatal != nil {
		return *fatal
	}
	msg := message(rec)
	delivery := make(chan kafka.Event, 1)
	err := p.p.Produce(msg, delivery)
	if queueFull(err) && queueTimeout > 0 {
		p.p.Flush(int(queueTimeout.Milliseconds()))
		err = p.p.Produce(msg, delivery)
	}
	if err != nil {
		return err
	}
	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return errors.Errorf("unexpected delivery event %v", ev)
		}
		return m.TopicPartition.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *producer) Close() error {
	if n := p.p.Flush(1000); n > 0 {
		p.logger.Warn("closing producer with undelivered messages", zap.Int("count", n))
	}
	p.p.Close()
	<-p.events
	p.logs.close()
	return nil
}

// message builds the librdkafka message for rec. librdkafka copies
// the key and value.
func message(rec *client.Record) *kafka.Message {
	topic := rec.Topic
	m := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   rec.Key,
		Value: rec.Value,
	}
	if rec.TimestampMs != nil {
		m.Timestamp = time.UnixMilli(*rec.TimestampMs)
	}
	return m
}

func queueFull(err error) bool {
	var kerr kafka.Error
	return errors.As(err, &kerr) && kerr.Code() == kafka.ErrQueueFull
}
