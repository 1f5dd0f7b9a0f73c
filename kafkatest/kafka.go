// Package kafkatest gives tests access to a real Kafka cluster.
package kafkatest

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"gopkg.in/retry.v1"

	"github.com/heetch/relay/config"
)

// ErrDisabled is returned by New when no cluster is configured.
var ErrDisabled = errors.New("kafka tests are disabled")

// New connects to the Kafka cluster described by the environment:
//
//   - $KAFKA_ADDRS: a comma-separated list of broker addresses in
//     host:port form. When empty, New returns ErrDisabled.
//   - $KAFKA_DISABLE: a boolean as parsed by strconv.ParseBool. If
//     this is true, New returns ErrDisabled.
//   - $KAFKA_USERNAME, $KAFKA_PASSWORD: SASL credentials, used when
//     $KAFKA_USERNAME is non-empty.
//   - $KAFKA_USE_TLS: a boolean as parsed by strconv.ParseBool.
//   - $KAFKA_TIMEOUT: how long to wait for the cluster to be
//     reachable. Defaults to "30s".
//
// The returned Kafka must be closed after use.
func New() (*Kafka, error) {
	disabled, err := boolVar("KAFKA_DISABLE")
	if err != nil {
		return nil, errors.Wrap(err, "bad value for $KAFKA_DISABLE")
	}
	addrs := os.Getenv("KAFKA_ADDRS")
	if disabled || addrs == "" {
		return nil, ErrDisabled
	}
	useTLS, err := boolVar("KAFKA_USE_TLS")
	if err != nil {
		return nil, errors.Wrap(err, "bad value for $KAFKA_USE_TLS")
	}
	k := &Kafka{
		addrs:        strings.Split(addrs, ","),
		useTLS:       useTLS,
		saslUser:     os.Getenv("KAFKA_USERNAME"),
		saslPassword: os.Getenv("KAFKA_PASSWORD"),
	}
	limit := 30 * time.Second
	if s := os.Getenv("KAFKA_TIMEOUT"); s != "" {
		limit, err = time.ParseDuration(s)
		if err != nil {
			return nil, errors.Wrap(err, "bad value for $KAFKA_TIMEOUT")
		}
	}
	// The cluster may still be starting.
	strategy := retry.LimitTime(limit, retry.Exponential{
		Initial:  10 * time.Millisecond,
		MaxDelay: time.Second,
	})
	for a := retry.Start(strategy, nil); a.Next(); {
		var admin sarama.ClusterAdmin
		admin, err = sarama.NewClusterAdmin(k.addrs, k.SaramaConfig())
		if err == nil {
			k.admin = admin
			return k, nil
		}
	}
	return nil, errors.Wrapf(err, "cannot connect to Kafka cluster at %q after %v", k.addrs, limit)
}

// Kafka is a connection to a test cluster.
type Kafka struct {
	addrs        []string
	useTLS       bool
	saslUser     string
	saslPassword string
	admin        sarama.ClusterAdmin
	topics       []string
}

// Addrs returns the broker addresses.
func (k *Kafka) Addrs() []string {
	return k.addrs
}

// Config returns a relay configuration for the cluster that starts
// from the earliest offset and reconnects quickly.
func (k *Kafka) Config(groupID string) config.Config {
	cfg := config.NewConfig(groupID, k.addrs...)
	cfg.AutoOffsetReset = config.OffsetResetEarliest
	cfg.ReconnectCount = 5
	cfg.ReconnectSleepMs = 100
	cfg.MessageTimeoutMs = config.Uint32(10000)
	return cfg
}

// SaramaConfig returns a sarama configuration with the connection
// parameters of the environment.
func (k *Kafka) SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	k.InitSaramaConfig(cfg)
	return cfg
}

// InitSaramaConfig sets the connection parameters on cfg. It can be
// passed to the sarama driver's WithConfig option.
func (k *Kafka) InitSaramaConfig(cfg *sarama.Config) {
	if cfg.Version == sarama.MinVersion {
		cfg.Version = sarama.V1_0_0_0
	}
	cfg.Net.TLS.Enable = k.useTLS
	if k.saslUser != "" {
		cfg.Net.SASL.Enable = true
		cfg.Net.SASL.User = k.saslUser
		cfg.Net.SASL.Password = k.saslPassword
	}
}

// NewTopic creates a topic with a random name and a single partition.
// It is deleted by Close.
//
// NewTopic panics if the topic cannot be created.
func (k *Kafka) NewTopic() string {
	return k.NewTopicPartitions(1)
}

// NewTopicPartitions is like NewTopic but creates a topic with n
// partitions.
func (k *Kafka) NewTopicPartitions(n int32) string {
	if k.admin == nil {
		panic("cannot create topic with closed kafkatest.Kafka instance")
	}
	topic := RandomName("relaytest-")
	if err := k.admin.CreateTopic(topic, &sarama.TopicDetail{
		NumPartitions:     n,
		ReplicationFactor: 1,
	}, false); err != nil {
		panic(fmt.Errorf("cannot create topic %q: %v", topic, err))
	}
	k.topics = append(k.topics, topic)
	return topic
}

// Close removes the topics created by NewTopic and closes the
// connection. It may be called more than once.
func (k *Kafka) Close() error {
	if k.admin == nil {
		return nil
	}
	for ; len(k.topics) != 0; k.topics = k.topics[1:] {
		if err := k.admin.DeleteTopic(k.topics[0]); err != nil {
			return errors.Wrapf(err, "cannot delete topic %q", k.topics[0])
		}
	}
	err := k.admin.Close()
	k.admin = nil
	return err
}

// RandomName returns prefix followed by random hex digits.
func RandomName(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s%x", prefix, buf)
}

func boolVar(envVar string) (bool, error) {
	s := os.Getenv(envVar)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.Errorf("invalid boolean value %q (possible values are: 1, t, T, TRUE, true, True, 0, f, F, FALSE)", s)
	}
	return b, nil
}
