// Package config holds the configuration shared by the relay consumer
// and producer, along with its defaults, validation and loading.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultMessageTimeoutMs is the producer delivery timeout used by NewConfig.
	DefaultMessageTimeoutMs uint32 = 500
	// DefaultMaxMessageSize is the per-message byte cap used by NewConfig (30 MiB).
	DefaultMaxMessageSize uint32 = 30 << 20
	// DefaultReconnectCount is the number of reconnect attempts allowed
	// after the first connection attempt.
	DefaultReconnectCount uint32 = 100
	// DefaultReconnectSleepMs is the pause before each reconnect attempt.
	DefaultReconnectSleepMs uint32 = 500
)

// OffsetReset tells the client where to start consuming when the
// group has no valid committed offset.
type OffsetReset string

const (
	OffsetResetNone     OffsetReset = "none"
	OffsetResetLatest   OffsetReset = "latest"
	OffsetResetEarliest OffsetReset = "earliest"
)

// LogLevel is the verbosity passed through to the underlying client.
// Levels are ordered from the least to the most verbose.
type LogLevel string

const (
	LogCritical LogLevel = "CRITICAL"
	LogError    LogLevel = "ERROR"
	LogWarning  LogLevel = "WARNING"
	LogInfo     LogLevel = "INFO"
	LogDebug    LogLevel = "DEBUG"
)

var logLevels = []LogLevel{LogCritical, LogError, LogWarning, LogInfo, LogDebug}

func (l LogLevel) rank() int {
	for i, lvl := range logLevels {
		if strings.EqualFold(string(l), string(lvl)) {
			return i
		}
	}
	return -1
}

// Less reports whether l is less verbose than other.
func (l LogLevel) Less(other LogLevel) bool {
	return l.rank() < other.rank()
}

// Syslog returns the syslog severity librdkafka expects for l.
// Unknown levels map to the error severity.
func (l LogLevel) Syslog() int {
	switch l.rank() {
	case 0:
		return 2
	case 2:
		return 4
	case 3:
		return 6
	case 4:
		return 7
	default:
		return 3
	}
}

// ZapLevel returns the zap level matching l.
func (l LogLevel) ZapLevel() zapcore.Level {
	switch l.rank() {
	case 0:
		return zapcore.DPanicLevel
	case 2:
		return zapcore.WarnLevel
	case 3:
		return zapcore.InfoLevel
	case 4:
		return zapcore.DebugLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Config is used to configure consumers and producers.
//
// The pointer fields are optional: when nil, the underlying client
// default applies.
type Config struct {
	// Brokers holds the Kafka brokers addresses in host:port form.
	// There must be at least one entry.
	Brokers []string `mapstructure:"brokers" validate:"required,min=1,dive,required"`
	// GroupID is the consumer group. It is required for consuming.
	GroupID string `mapstructure:"group_id"`
	// Topic is used when no topic is given to Consumer.Stream and
	// as the default producer topic.
	Topic string `mapstructure:"topic"`

	PartitionEOF     *bool   `mapstructure:"partition_eof"`
	SessionTimeoutMs *uint32 `mapstructure:"session_timeout_ms" validate:"omitempty,gt=0"`
	MessageTimeoutMs *uint32 `mapstructure:"message_timeout_ms" validate:"omitempty,gt=0"`
	// MaxMessageSize caps a single message, in bytes. The client
	// buffering budget is derived from it.
	MaxMessageSize *uint32 `mapstructure:"max_message_size" validate:"omitempty,gt=0"`
	AutoCommit     *bool   `mapstructure:"auto_commit"`

	AutoOffsetReset OffsetReset `mapstructure:"auto_offset_reset" validate:"oneof=none latest earliest"`

	// ReconnectCount is the number of extra connection attempts
	// allowed after the first one.
	ReconnectCount uint32 `mapstructure:"reconnect_count"`
	// ReconnectSleepMs is the pause before each reconnect attempt.
	ReconnectSleepMs uint32 `mapstructure:"reconnect_sleep_ms"`

	LogLevel LogLevel `mapstructure:"log_level" validate:"oneof=CRITICAL ERROR WARNING INFO DEBUG"`
}

// NewConfig creates a config with sane defaults.
func NewConfig(groupID string, brokers ...string) Config {
	c := Config{
		Brokers:          brokers,
		GroupID:          groupID,
		MessageTimeoutMs: Uint32(DefaultMessageTimeoutMs),
		MaxMessageSize:   Uint32(DefaultMaxMessageSize),
		AutoOffsetReset:  OffsetResetEarliest,
		ReconnectCount:   DefaultReconnectCount,
		ReconnectSleepMs: DefaultReconnectSleepMs,
		LogLevel:         LogError,
	}
	if c.Brokers == nil {
		c.Brokers = []string{"localhost:9092"}
	}
	return c
}

var validate = validator.New()

// Validate checks that c is usable by a producer. Broker addresses
// are not parsed: a malformed address shows up as a connection failure.
func (c Config) Validate() error {
	// Log levels are matched regardless of case.
	c.LogLevel = LogLevel(strings.ToUpper(string(c.LogLevel)))
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// ValidateConsumer is like Validate but also requires a group id.
func (c Config) ValidateConsumer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.GroupID == "" {
		return errors.New("invalid config: group id is required for consuming")
	}
	return nil
}

// Bool returns a pointer to b, for the tri-state fields of Config.
func Bool(b bool) *bool {
	return &b
}

// Uint32 returns a pointer to v.
func Uint32(v uint32) *uint32 {
	return &v
}
