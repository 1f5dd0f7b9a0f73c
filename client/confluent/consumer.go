package confluent

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/heetch/relay/client"
)

type consumer struct {
	c      *kafka.Consumer
	logger *zap.Logger
	logs   *logForwarder
}

func (c *consumer) Subscribe(topics []string) error {
	return c.c.SubscribeTopics(topics, nil)
}

func (c *consumer) Receive(ctx context.Context) (*client.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev := c.c.Poll(pollTimeoutMs)
		if ev == nil {
			continue
		}
		if rec, err := c.event(ev); rec != nil || err != nil {
			return rec, err
		}
	}
}

// event turns a polled event into a record or an error. Both are nil
// for events the caller should not see.
func (c *consumer) event(ev kafka.Event) (*client.Record, error) {
	switch e := ev.(type) {
	case *kafka.Message:
		if e.TopicPartition.Error != nil {
			return nil, e.TopicPartition.Error
		}
		return record(e), nil
	case kafka.PartitionEOF:
		eof := &client.PartitionEOF{
			Partition: e.Partition,
			Offset:    int64(e.Offset),
		}
		if e.Topic != nil {
			eof.Topic = *e.Topic
		}
		return nil, eof
	case kafka.Error:
		if IsFatal(e) {
			return nil, e
		}
		// librdkafka recovers from the others by itself.
		c.logger.Warn("kafka client error", zap.Error(e), zap.Stringer("code", e.Code()))
		return nil, nil
	default:
		c.logger.Debug("ignored kafka event", zap.Stringer("event", e))
		return nil, nil
	}
}

func (c *consumer) Close() error {
	err := c.c.Close()
	c.logs.close()
	return err
}

func record(m *kafka.Message) *client.Record {
	rec := &client.Record{
		Key:       m.Key,
		Value:     m.Value,
		Partition: m.TopicPartition.Partition,
		Offset:    int64(m.TopicPartition.Offset),
	}
	if m.TopicPartition.Topic != nil {
		rec.Topic = *m.TopicPartition.Topic
	}
	if m.TimestampType != kafka.TimestampNotAvailable {
		rec.TimestampMs = client.TimestampMs(m.Timestamp)
	}
	return rec
}
