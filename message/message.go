package message

import "time"

// Meta holds the parts of a Message that do not depend on its payload.
type Meta struct {
	// Key is nil when the message has no key. Messages with the same
	// key go to the same partition.
	Key []byte

	// TimestampMs is the message timestamp in milliseconds since the
	// Unix epoch (UTC), if known.
	TimestampMs *int64

	// Partition the message was read from. Ignored when sending.
	Partition int32
}

// Message is a received or to-be-sent Kafka message with a payload
// of type M.
type Message[M any] struct {
	Meta

	// Payload is nil for tombstones and empty records.
	Payload *M
}

// New creates a message holding payload.
func New[M any](payload M, opts ...Option) *Message[M] {
	m := Tombstone[M](opts...)
	m.Payload = &payload
	return m
}

// Tombstone creates a message without payload.
func Tombstone[M any](opts ...Option) *Message[M] {
	var m Message[M]
	for _, o := range opts {
		o(&m.Meta)
	}
	return &m
}

// Timestamp returns the message timestamp as a UTC time, and whether
// the message has one.
func (m Message[M]) Timestamp() (time.Time, bool) {
	if m.TimestampMs == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*m.TimestampMs).UTC(), true
}

// KafkaMessage is implemented by values that can be sent by a producer.
type KafkaMessage[V any] interface {
	// KafkaKey returns the message key, or nil.
	KafkaKey() []byte
	// KafkaValue returns the payload and whether there is one.
	KafkaValue() (V, bool)
	// KafkaTimestampMs returns the timestamp in milliseconds and
	// whether there is one.
	KafkaTimestampMs() (int64, bool)
}

func (m Message[M]) KafkaKey() []byte {
	return m.Key
}

func (m Message[M]) KafkaValue() (M, bool) {
	if m.Payload == nil {
		var zero M
		return zero, false
	}
	return *m.Payload, true
}

func (m Message[M]) KafkaTimestampMs() (int64, bool) {
	if m.TimestampMs == nil {
		return 0, false
	}
	return *m.TimestampMs, true
}
