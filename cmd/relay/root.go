package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heetch/relay/client"
	"github.com/heetch/relay/client/confluent"
	"github.com/heetch/relay/client/sarama"
	"github.com/heetch/relay/codec"
	"github.com/heetch/relay/common"
	"github.com/heetch/relay/config"
	"github.com/heetch/relay/consumer"
	"github.com/heetch/relay/message"
	"github.com/heetch/relay/metrics"
	"github.com/heetch/relay/producer"
)

const envPrefix = "RELAY"

// driverFunc returns the driver with the given name.
type driverFunc func(name string, logger *zap.Logger) (client.Driver, error)

func newDriver(name string, logger *zap.Logger) (client.Driver, error) {
	switch name {
	case "confluent":
		return confluent.New(confluent.WithLogger(logger)), nil
	case "sarama":
		return sarama.New(sarama.WithLogger(logger)), nil
	}
	return nil, errors.Errorf("unknown driver %q", name)
}

// app holds what the subcommands share.
type app struct {
	newDriver driverFunc

	configPath  string
	driverName  string
	dev         bool
	metricsAddr string

	cfg     config.Config
	logger  *zap.Logger
	driver  client.Driver
	metrics *metrics.Reporter
	server  *http.Server
	// listenAddr is the address the metrics server listens on.
	listenAddr string
}

func newRootCommand(newDriver driverFunc) *cobra.Command {
	a := &app{newDriver: newDriver}
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Consume from and produce to Kafka topics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "configuration file (YAML, JSON or TOML)")
	flags.StringVar(&a.driverName, "driver", "confluent", "Kafka client: confluent or sarama")
	flags.BoolVar(&a.dev, "dev", false, "human-friendly logs")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(a.consumeCommand(), a.produceCommand())
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath, envPrefix)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, err = common.NewLogger(cfg.LogLevel.ZapLevel(), a.dev)
	if err != nil {
		return err
	}
	a.driver, err = a.newDriver(a.driverName, a.logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	a.metrics = metrics.New(reg)
	if a.metricsAddr != "" {
		ln, err := net.Listen("tcp", a.metricsAddr)
		if err != nil {
			return errors.Wrap(err, "cannot serve metrics")
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		a.listenAddr = ln.Addr().String()
		a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.server.Serve(ln); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		a.logger.Info("serving metrics", zap.String("addr", a.listenAddr))
	}
	return nil
}

func (a *app) teardown() error {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "cannot stop metrics server")
		}
	}
	if a.logger != nil {
		// Syncing stderr fails on some platforms.
		_ = a.logger.Sync()
	}
	return nil
}

func (a *app) consumeCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "consume [topic...]",
		Short: "Print the messages of topics, or of the configured topic",
		RunE: func(cmd *cobra.Command, topics []string) error {
			cs, err := consumer.New[string](a.cfg, a.driver, codec.String(),
				consumer.WithLogger(a.logger),
				consumer.WithMetrics(a.metrics.Consumer()),
			)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			n := 0
			return cs.Serve(ctx, printer{
				w:      cmd.OutOrStdout(),
				logger: a.logger,
				done: func() bool {
					n++
					return limit > 0 && n >= limit
				},
				stop: cancel,
			}, topics...)
		},
	}
	cmd.Flags().IntVar(&limit, "max", 0, "stop after this many messages (0 means no limit)")
	return cmd
}

func (a *app) produceCommand() *cobra.Command {
	var (
		topic     string
		key       string
		tombstone bool
	)
	cmd := &cobra.Command{
		Use:   "produce [value]",
		Short: "Send one message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []producer.Option{
				producer.WithLogger(a.logger),
				producer.WithMetrics(a.metrics.Producer()),
			}
			if topic != "" {
				opts = append(opts, producer.Topic(topic))
			}
			p, err := producer.New[string](a.cfg, a.driver, codec.String(), opts...)
			if err != nil {
				return err
			}
			defer p.Close()

			var msgOpts []message.Option
			if key != "" {
				msgOpts = append(msgOpts, message.StrKey(key))
			}
			msgOpts = append(msgOpts, message.Timestamp(time.Now()))
			var msg *message.Message[string]
			switch {
			case tombstone:
				msg = message.Tombstone[string](msgOpts...)
			case len(args) == 1:
				msg = message.New(args[0], msgOpts...)
			default:
				return errors.New("no value given; use --tombstone to send a message without value")
			}
			return p.Send(cmd.Context(), msg)
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic to send to (defaults to the configured topic)")
	cmd.Flags().StringVar(&key, "key", "", "message key")
	cmd.Flags().BoolVar(&tombstone, "tombstone", false, "send a message without value")
	return cmd
}

// printer writes each message on a line: partition, key and payload.
type printer struct {
	w      io.Writer
	logger *zap.Logger
	// done reports whether enough messages have been printed.
	done func() bool
	stop context.CancelFunc
}

func (p printer) HandleMessage(ctx context.Context, m *message.Message[string]) error {
	payload := "<tombstone>"
	if m.Payload != nil {
		payload = *m.Payload
	}
	if _, err := fmt.Fprintf(p.w, "%d\t%s\t%s\n", m.Partition, m.Key, payload); err != nil {
		return err
	}
	if p.done() {
		p.stop()
	}
	return nil
}

func (p printer) HandleError(ctx context.Context, err error) {
	p.logger.Warn("cannot receive message", zap.Error(err))
}
