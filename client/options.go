package client

import (
	"strconv"
	"strings"

	"github.com/heetch/relay/config"
)

// Property names understood by the drivers. They are librdkafka
// configuration properties.
const (
	BootstrapServers        = "bootstrap.servers"
	GroupID                 = "group.id"
	EnablePartitionEOF      = "enable.partition.eof"
	SessionTimeoutMs        = "session.timeout.ms"
	MessageTimeoutMs        = "message.timeout.ms"
	MessageMaxBytes         = "message.max.bytes"
	QueueBufferingMaxKBytes = "queue.buffering.max.kbytes"
	EnableAutoCommit        = "enable.auto.commit"
	AutoOffsetReset         = "auto.offset.reset"
	Partitioner             = "partitioner"
	LogLevel                = "log_level"
)

// PartitionerMurmur2 hashes keys the way the JVM clients do. Keyless
// messages go to a random partition.
const PartitionerMurmur2 = "murmur2_random"

// Options holds the client properties needed to build a consumer or
// producer handle. Absent keys leave the client default in place.
type Options map[string]string

// Build maps cfg onto client options. It does not validate anything:
// bad values are reported by the driver when a handle is built.
func Build(cfg config.Config) Options {
	opts := Options{
		BootstrapServers: strings.Join(cfg.Brokers, ","),
		GroupID:          cfg.GroupID,
		Partitioner:      PartitionerMurmur2,
		LogLevel:         strconv.Itoa(cfg.LogLevel.Syslog()),
	}
	if cfg.PartitionEOF != nil {
		opts[EnablePartitionEOF] = strconv.FormatBool(*cfg.PartitionEOF)
	}
	if cfg.SessionTimeoutMs != nil {
		opts[SessionTimeoutMs] = formatUint(*cfg.SessionTimeoutMs)
	}
	if cfg.MessageTimeoutMs != nil {
		opts[MessageTimeoutMs] = formatUint(*cfg.MessageTimeoutMs)
	}
	if cfg.MaxMessageSize != nil {
		size := *cfg.MaxMessageSize
		opts[MessageMaxBytes] = formatUint(size)
		opts[QueueBufferingMaxKBytes] = formatUint(size / 1024)
	}
	if cfg.AutoCommit != nil {
		opts[EnableAutoCommit] = strconv.FormatBool(*cfg.AutoCommit)
	}
	switch cfg.AutoOffsetReset {
	case config.OffsetResetLatest:
		opts[AutoOffsetReset] = "latest"
	case config.OffsetResetNone:
		// librdkafka fails the consumer instead of resetting.
		opts[AutoOffsetReset] = "error"
	default:
		opts[AutoOffsetReset] = "earliest"
	}
	return opts
}

// Brokers returns the broker list held by o.
func (o Options) Brokers() []string {
	s := o[BootstrapServers]
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Bool returns the boolean value of key and whether it is set to a
// valid boolean.
func (o Options) Bool(key string) (bool, bool) {
	s, ok := o[key]
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

// Int returns the integer value of key and whether it is set to a
// valid integer.
func (o Options) Int(key string) (int, bool) {
	s, ok := o[key]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(s)
	return i, err == nil
}

func formatUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
