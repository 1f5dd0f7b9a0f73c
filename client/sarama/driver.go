// Package sarama implements client.Driver on top of the pure Go
// Shopify/sarama client.
//
// Options are librdkafka properties. They are mapped onto the
// closest sarama settings; properties sarama has no equivalent for
// are ignored.
package sarama

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/heetch/relay/client"
)

// ClientID identifies relay clients to the brokers.
const ClientID = "relay"

// fatalErrors mean the client or session behind a handle is unusable.
var fatalErrors = []error{
	sarama.ErrClosedClient,
	sarama.ErrClosedConsumerGroup,
	sarama.ErrOutOfBrokers,
	sarama.ErrShuttingDown,
	sarama.ErrInvalidProducerEpoch,
	sarama.ErrTransactionalIDAuthorizationFailed,
	sarama.ErrClusterAuthorizationFailed,
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithConfig lets f adjust each sarama configuration after the
// options have been applied, to set TLS or SASL for instance.
func WithConfig(f func(*sarama.Config)) Option {
	return func(d *Driver) {
		d.configure = f
	}
}

// Driver builds sarama consumer groups and sync producers.
type Driver struct {
	logger    *zap.Logger
	configure func(*sarama.Config)
}

var _ client.Driver = (*Driver)(nil)

// New returns a Driver.
func New(opts ...Option) *Driver {
	d := &Driver{logger: zap.NewNop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Driver) NewConsumer(opts client.Options) (client.Consumer, error) {
	cfg, err := d.Config(opts)
	if err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroup(opts.Brokers(), opts[client.GroupID], cfg)
	if err != nil {
		return nil, err
	}
	eof, _ := opts.Bool(client.EnablePartitionEOF)
	return newConsumer(group, eof, d.logger), nil
}

func (d *Driver) NewProducer(opts client.Options) (client.Producer, error) {
	cfg, err := d.Config(opts)
	if err != nil {
		return nil, err
	}
	sp, err := sarama.NewSyncProducer(opts.Brokers(), cfg)
	if err != nil {
		return nil, err
	}
	return NewProducerFrom(sp), nil
}

func (d *Driver) IsFatal(err error) bool {
	return IsFatal(err)
}

// IsFatal reports whether err leaves the sarama client that returned
// it unusable.
func IsFatal(err error) bool {
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Config returns the sarama configuration matching opts.
func (d *Driver) Config(opts client.Options) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = ClientID
	cfg.Version = sarama.V1_0_0_0

	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	if ms, ok := opts.Int(client.SessionTimeoutMs); ok {
		cfg.Consumer.Group.Session.Timeout = time.Duration(ms) * time.Millisecond
		cfg.Consumer.Group.Heartbeat.Interval = cfg.Consumer.Group.Session.Timeout / 3
	}
	if commit, ok := opts.Bool(client.EnableAutoCommit); ok {
		cfg.Consumer.Offsets.AutoCommit.Enable = commit
	}
	switch strings.ToLower(opts[client.AutoOffsetReset]) {
	case "latest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		// sarama cannot refuse to reset, so "error" starts from the
		// beginning as "earliest" does.
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	switch opts[client.Partitioner] {
	case "random":
		cfg.Producer.Partitioner = sarama.NewRandomPartitioner
	default:
		cfg.Producer.Partitioner = NewPartitioner
	}
	if ms, ok := opts.Int(client.MessageTimeoutMs); ok {
		cfg.Producer.Timeout = time.Duration(ms) * time.Millisecond
	}
	if size, ok := opts.Int(client.MessageMaxBytes); ok {
		cfg.Producer.MaxMessageBytes = size
	}

	if d.configure != nil {
		d.configure(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid sarama config")
	}
	return cfg, nil
}
