// Package client defines the boundary between the relay adapters and
// the underlying Kafka client library.
//
// A Driver builds consumer and producer handles from Options and
// classifies the errors they return. Drivers live in subpackages:
// confluent (librdkafka) and sarama.
package client

import (
	"context"
	"fmt"
	"time"
)

// Record is a message as seen by a driver.
type Record struct {
	Topic string
	// Key is nil when the message has no key.
	Key []byte
	// Value is nil when the message has no payload.
	// When sending, Value is only valid for the duration of the Send call.
	Value []byte
	// TimestampMs is the message timestamp in milliseconds since the
	// Unix epoch, if any.
	TimestampMs *int64
	Partition   int32
	Offset      int64
}

// Driver builds handles for a Kafka client library.
type Driver interface {
	// NewConsumer builds a consumer handle. Failures are connection failures.
	NewConsumer(opts Options) (Consumer, error)
	// NewProducer builds a producer handle. Failures are connection failures.
	NewProducer(opts Options) (Producer, error)
	// IsFatal reports whether err means the handle that returned it
	// cannot be used any more and a new one must be built.
	IsFatal(err error) bool
}

// Consumer is a live consumer session.
type Consumer interface {
	Subscribe(topics []string) error
	// Receive blocks until a record or an error is available, or
	// ctx is done.
	Receive(ctx context.Context) (*Record, error)
	Close() error
}

// Producer is a live producer session.
type Producer interface {
	// Send submits rec and waits for its delivery report. queueTimeout
	// bounds how long the record may wait for room in the local queue;
	// zero means it fails at once when the queue is full.
	Send(ctx context.Context, rec *Record, queueTimeout time.Duration) error
	Close() error
}

// PartitionEOF is returned by Consumer.Receive when the end of a
// partition is reached and end-of-partition events are enabled.
type PartitionEOF struct {
	Topic     string
	Partition int32
	Offset    int64
}

func (e *PartitionEOF) Error() string {
	return fmt.Sprintf("reached end of partition %s[%d] at offset %d", e.Topic, e.Partition, e.Offset)
}

// TimestampMs returns t as milliseconds since the Unix epoch, or nil
// if t is the zero time.
func TimestampMs(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
