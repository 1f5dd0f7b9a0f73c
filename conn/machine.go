// Package conn implements the reconnection policy shared by the
// consumer and the producer.
//
// A Machine owns at most one live handle. Failed connection attempts
// and fatal errors spend the reconnect budget; anything else is
// reported to the caller with the handle left in place. Once
// budget+1 failures have been recorded, the Machine is exhausted and
// keeps reporting the last failure.
package conn

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// State is the state of a Machine.
type State int

const (
	Disconnected State = iota
	Connected
	Exhausted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// ConnectFunc builds a new handle.
type ConnectFunc[H io.Closer] func(ctx context.Context) (H, error)

// Option configures a Machine.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics MetricsReporter
	sleep   time.Duration
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics reporter.
func WithMetrics(m MetricsReporter) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithReconnectSleep makes the Machine wait d before each connection
// attempt that follows a failure.
func WithReconnectSleep(d time.Duration) Option {
	return func(o *options) {
		o.sleep = d
	}
}

// Machine drives the connection state of one adapter. It is not safe
// for concurrent use.
type Machine[H io.Closer] struct {
	budget    int
	remaining int
	state     State
	handle    H
	last      error
	retrying  bool

	connect ConnectFunc[H]
	isFatal func(error) bool
	opts    options
}

// New returns a disconnected Machine allowing budget reconnections
// after the first attempt. isFatal tells which operation errors
// require a new handle.
func New[H io.Closer](budget int, connect ConnectFunc[H], isFatal func(error) bool, opts ...Option) *Machine[H] {
	m := &Machine[H]{
		budget:  budget,
		connect: connect,
		isFatal: isFatal,
		opts: options{
			logger:  zap.NewNop(),
			metrics: nopReporter{},
		},
	}
	for _, o := range opts {
		o(&m.opts)
	}
	m.Reset()
	return m
}

// State returns the current state.
func (m *Machine[H]) State() State {
	return m.state
}

// Remaining returns the number of failures the Machine still
// tolerates before being exhausted.
func (m *Machine[H]) Remaining() int {
	return m.remaining
}

// Err returns the terminal error when exhausted, and nil otherwise.
func (m *Machine[H]) Err() error {
	if m.state != Exhausted {
		return nil
	}
	return &ExhaustedError{Attempts: m.budget + 1, Err: m.last}
}

// Reset restores the full budget. A live handle is kept.
func (m *Machine[H]) Reset() {
	m.remaining = m.budget + 1
	m.last = nil
	m.retrying = false
	if m.state == Exhausted {
		m.state = Disconnected
	}
}

// Connect builds a new handle if the Machine is disconnected. On
// failure it spends one unit of budget and returns a TransportError,
// or the terminal error if the budget is now spent.
// It returns ctx.Err() without spending budget if ctx is done while
// waiting to reconnect.
func (m *Machine[H]) Connect(ctx context.Context) error {
	switch m.state {
	case Connected:
		return nil
	case Exhausted:
		return m.Err()
	}
	if m.retrying && m.opts.sleep > 0 {
		t := time.NewTimer(m.opts.sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	h, err := m.connect(ctx)
	m.opts.metrics.ConnectAttempt(err)
	if err != nil {
		m.opts.logger.Warn("cannot connect to kafka",
			zap.Error(err),
			zap.Int("remaining", m.remaining-1),
		)
		return m.spend(&TransportError{Op: "connect", Err: err})
	}
	m.opts.logger.Debug("connected to kafka")
	m.handle = h
	m.state = Connected
	return nil
}

// Handle returns the live handle, or ErrNoConnection.
func (m *Machine[H]) Handle() (H, error) {
	if m.state != Connected {
		var zero H
		return zero, ErrNoConnection
	}
	return m.handle, nil
}

// Succeed records a successful operation.
func (m *Machine[H]) Succeed(op string) {
	m.opts.metrics.Operation(op, Success)
}

// Fail records a failed operation. A fatal error drops the handle and
// spends one unit of budget; Fail then returns nil and the caller
// should reconnect. Any other error is returned as a TransportError
// and the handle is kept.
func (m *Machine[H]) Fail(op string, err error) error {
	if !m.isFatal(err) {
		m.opts.metrics.Operation(op, Transient)
		return &TransportError{Op: op, Err: err}
	}
	m.opts.metrics.Operation(op, Fatal)
	m.opts.logger.Warn("fatal kafka error, reconnecting",
		zap.String("op", op),
		zap.Error(err),
		zap.Int("remaining", m.remaining-1),
	)
	m.drop()
	m.spend(&TransportError{Op: op, Fatal: true, Err: err})
	return nil
}

// CodecFailure records an encoding or decoding error. It never
// affects the connection or the budget.
func (m *Machine[H]) CodecFailure(op string, err error) error {
	m.opts.metrics.Operation(op, Codec)
	return &CodecError{Op: op, Err: err}
}

// Close releases the handle, if any. The budget is left untouched.
func (m *Machine[H]) Close() error {
	if m.state != Connected {
		return nil
	}
	h := m.handle
	var zero H
	m.handle = zero
	m.state = Disconnected
	return h.Close()
}

func (m *Machine[H]) drop() {
	if err := m.Close(); err != nil {
		m.opts.logger.Warn("cannot close kafka handle", zap.Error(err))
	}
}

func (m *Machine[H]) spend(err error) error {
	m.last = err
	m.retrying = true
	m.remaining--
	if m.remaining > 0 {
		return err
	}
	m.state = Exhausted
	exhausted := m.Err()
	m.opts.metrics.Exhausted(exhausted)
	m.opts.logger.Error("kafka reconnect budget exhausted", zap.Error(exhausted))
	return exhausted
}
