package message

import "time"

// Option is a function type that receives a pointer to the Meta of a
// Message and modifies it in place.
type Option func(*Meta)

// Key is an Option that specifies a key for the message. If passed
// multiple times, the last one wins.
func Key(key []byte) Option {
	return func(m *Meta) {
		m.Key = key
	}
}

// StrKey is like Key but takes a string.
func StrKey(key string) Option {
	return Key([]byte(key))
}

// Timestamp is an Option that sets the message timestamp, truncated
// to the millisecond.
func Timestamp(t time.Time) Option {
	return TimestampMs(t.UnixMilli())
}

// TimestampMs is an Option that sets the message timestamp in
// milliseconds since the Unix epoch.
func TimestampMs(ms int64) Option {
	return func(m *Meta) {
		m.TimestampMs = &ms
	}
}

// Partition is an Option that sets the message partition.
func Partition(p int32) Option {
	return func(m *Meta) {
		m.Partition = p
	}
}
