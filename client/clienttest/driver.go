// Package clienttest provides an in-memory client.Driver whose
// behaviour is scripted by the test using it.
package clienttest

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/heetch/relay/client"
)

// ErrFatal is classified as fatal by a Driver without FatalFunc.
var ErrFatal = errors.New("clienttest: fatal error")

// Driver implements client.Driver. The zero value connects every time,
// blocks on Receive until the context is done and accepts every Send.
// Driver is safe for concurrent use.
type Driver struct {
	// ConnectFunc is called with the 1-based number of the attempt
	// each time a handle is built. A non-nil error fails the attempt.
	ConnectFunc func(attempt int) error
	// ReceiveFunc is called with the 1-based number of the call for
	// each Receive, across all handles.
	ReceiveFunc func(ctx context.Context, n int) (*client.Record, error)
	// SendFunc is called for each Send, across all handles.
	SendFunc func(n int, rec *client.Record) error
	// SubscribeFunc is called for each Subscribe. A non-nil error
	// fails the subscription.
	SubscribeFunc func(topics []string) error
	// CloseFunc is called the first time each handle is closed, and
	// its error is returned by Close.
	CloseFunc func() error
	// FatalFunc classifies errors. Defaults to matching ErrFatal.
	FatalFunc func(err error) bool

	mu         sync.Mutex
	connects   int
	receives   int
	sends      int
	closed     int
	options    []client.Options
	subscribed [][]string
	sent       []client.Record
}

var _ client.Driver = (*Driver)(nil)

func (d *Driver) NewConsumer(opts client.Options) (client.Consumer, error) {
	if err := d.build(opts); err != nil {
		return nil, err
	}
	return &handle{d: d}, nil
}

func (d *Driver) NewProducer(opts client.Options) (client.Producer, error) {
	if err := d.build(opts); err != nil {
		return nil, err
	}
	return &handle{d: d}, nil
}

func (d *Driver) IsFatal(err error) bool {
	if d.FatalFunc != nil {
		return d.FatalFunc(err)
	}
	return errors.Is(err, ErrFatal)
}

func (d *Driver) build(opts client.Options) error {
	d.mu.Lock()
	d.connects++
	n := d.connects
	d.options = append(d.options, opts)
	d.mu.Unlock()
	if d.ConnectFunc != nil {
		return d.ConnectFunc(n)
	}
	return nil
}

// Connects returns the number of handles built or attempted.
func (d *Driver) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// Receives returns the number of Receive calls.
func (d *Driver) Receives() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.receives
}

// Closed returns the number of handles closed.
func (d *Driver) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Options returns the options passed to each build attempt.
func (d *Driver) Options() []client.Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]client.Options(nil), d.options...)
}

// Subscribed returns the topics of each Subscribe call.
func (d *Driver) Subscribed() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]string(nil), d.subscribed...)
}

// Sent returns a copy of every record passed to Send.
func (d *Driver) Sent() []client.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]client.Record(nil), d.sent...)
}

type handle struct {
	d      *Driver
	closed bool
}

func (h *handle) Subscribe(topics []string) error {
	h.d.mu.Lock()
	h.d.subscribed = append(h.d.subscribed, append([]string(nil), topics...))
	h.d.mu.Unlock()
	if h.d.SubscribeFunc != nil {
		return h.d.SubscribeFunc(topics)
	}
	return nil
}

func (h *handle) Receive(ctx context.Context) (*client.Record, error) {
	if h.closed {
		return nil, errors.New("clienttest: receive on closed handle")
	}
	h.d.mu.Lock()
	h.d.receives++
	n := h.d.receives
	h.d.mu.Unlock()
	if h.d.ReceiveFunc != nil {
		return h.d.ReceiveFunc(ctx, n)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (h *handle) Send(ctx context.Context, rec *client.Record, _ time.Duration) error {
	if h.closed {
		return errors.New("clienttest: send on closed handle")
	}
	cp := *rec
	cp.Key = append([]byte(nil), rec.Key...)
	if rec.Value != nil {
		cp.Value = append([]byte{}, rec.Value...)
	}
	h.d.mu.Lock()
	h.d.sends++
	n := h.d.sends
	h.d.sent = append(h.d.sent, cp)
	h.d.mu.Unlock()
	if h.d.SendFunc != nil {
		return h.d.SendFunc(n, rec)
	}
	return ctx.Err()
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.d.mu.Lock()
	h.d.closed++
	h.d.mu.Unlock()
	if h.d.CloseFunc != nil {
		return h.d.CloseFunc()
	}
	return nil
}

// FailFirst returns a ConnectFunc that fails the first n attempts with err.
func FailFirst(n int, err error) func(attempt int) error {
	return func(attempt int) error {
		if attempt <= n {
			return err
		}
		return nil
	}
}

// Records returns a ReceiveFunc that returns recs in order and then
// blocks until the context is done.
func Records(recs ...*client.Record) func(ctx context.Context, n int) (*client.Record, error) {
	return func(ctx context.Context, n int) (*client.Record, error) {
		if n <= len(recs) {
			return recs[n-1], nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}
