package producer_test

import (
	"bytes"
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/heetch/relay/client"
	"github.com/heetch/relay/client/clienttest"
	"github.com/heetch/relay/codec"
	"github.com/heetch/relay/config"
	"github.com/heetch/relay/conn"
	"github.com/heetch/relay/message"
	"github.com/heetch/relay/producer"
)

func newConfig(budget uint32) config.Config {
	cfg := config.NewConfig("", "b1:9092")
	cfg.Topic = "events"
	cfg.ReconnectCount = budget
	cfg.ReconnectSleepMs = 0
	return cfg
}

func newProducer(c *qt.C, budget uint32, d client.Driver) *producer.Producer[string] {
	p, err := producer.New[string](newConfig(budget), d, codec.String())
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { c.Check(p.Close(), qt.IsNil) })
	return p
}

// Scenario: the first connection fails, the second succeeds and the
// message is sent.
func TestSendAfterConnectFailure(t *testing.T) {
	c := qt.New(t)

	d := &clienttest.Driver{ConnectFunc: clienttest.FailFirst(1, errors.New("broker down"))}
	p := newProducer(c, 1, d)

	err := p.Send(context.Background(), message.New("hello", message.StrKey("k"), message.TimestampMs(42)))
	c.Assert(err, qt.IsNil)
	c.Assert(d.Connects(), qt.Equals, 2)

	ts := int64(42)
	c.Assert(d.Sent(), qt.DeepEquals, []client.Record{{
		Topic:       "events",
		Key:         []byte("k"),
		Value:       []byte("hello"),
		TimestampMs: &ts,
	}})
}

// A non-fatal send error is returned at once, without reconnecting.
func TestSendTransientError(t *testing.T) {
	c := qt.New(t)

	d := &clienttest.Driver{
		SendFunc: func(n int, rec *client.Record) error {
			return errors.New("queue full")
		},
	}
	p := newProducer(c, 5, d)

	err := p.Send(context.Background(), message.New("hello"))
	c.Assert(err, qt.ErrorMatches, `kafka send: queue full`)
	var te *conn.TransportError
	c.Assert(errors.As(err, &te), qt.IsTrue)
	c.Assert(te.Fatal, qt.IsFalse)
	c.Assert(d.Connects(), qt.Equals, 1)
	c.Assert(d.Sent(), qt.HasLen, 1)
	c.Assert(d.Closed(), qt.Equals, 0)
}

// A fatal send error leads to a new connection and a new attempt.
func TestSendFatalError(t *testing.T) {
	c := qt.New(t)

	d := &clienttest.Driver{
		SendFunc: func(n int, rec *client.Record) error {
			if n == 1 {
				return clienttest.ErrFatal
			}
			return nil
		},
	}
	p := newProducer(c, 1, d)

	c.Assert(p.Send(context.Background(), message.New("hello")), qt.IsNil)
	c.Assert(d.Connects(), qt.Equals, 2)
	c.Assert(d.Closed(), qt.Equals, 1)
	sent := d.Sent()
	c.Assert(sent, qt.HasLen, 2)
	c.Assert(sent[1].Value, qt.DeepEquals, []byte("hello"))
}

// When every attempt fails fatally, Send gives up after budget+1
// attempts, and the next Send starts over with a full budget.
func TestSendExhausted(t *testing.T) {
	c := qt.New(t)

	d := &clienttest.Driver{
		SendFunc: func(n int, rec *client.Record) error {
			return errors.Wrap(clienttest.ErrFatal, "producer fenced")
		},
	}
	p := newProducer(c, 2, d)

	err := p.Send(context.Background(), message.New("hello"))
	c.Assert(err, qt.ErrorIs, conn.ErrExhausted)
	c.Assert(err, qt.ErrorMatches, `giving up after 3 failed attempts: kafka send: producer fenced: clienttest: fatal error`)
	c.Assert(d.Connects(), qt.Equals, 3)
	c.Assert(d.Sent(), qt.HasLen, 3)

	err = p.Send(context.Background(), message.New("hello"))
	c.Assert(err, qt.ErrorIs, conn.ErrExhausted)
	c.Assert(d.Connects(), qt.Equals, 6)
}

// When every connection attempt fails, Send gives up after budget+1
// attempts with the last connection error.
func TestSendConnectExhausted(t *testing.T) {
	c := qt.New(t)

	d := &clienttest.Driver{ConnectFunc: clienttest.FailFirst(100, errors.New("broker down"))}
	p := newProducer(c, 0, d)

	err := p.Send(context.Background(), message.New("hello"))
	c.Assert(err, qt.ErrorMatches, `giving up after 1 failed attempts: kafka connect: cannot create producer: broker down`)
	c.Assert(d.Connects(), qt.Equals, 1)
	c.Assert(d.Sent(), qt.HasLen, 0)
}

// An encoding error is returned at once and nothing is sent.
func TestSendEncodeError(t *testing.T) {
	c := qt.New(t)

	d := &clienttest.Driver{}
	enc := codec.EncoderFunc[int](func(v int, buf *bytes.Buffer) error {
		return errors.Errorf("cannot encode %d", v)
	})
	p, err := producer.New[int](newConfig(3), d, enc)
	c.Assert(err, qt.IsNil)

	err = p.Send(context.Background(), message.New(7))
	c.Assert(err, qt.ErrorMatches, `message encode: cannot encode 7`)
	var ce *conn.CodecError
	c.Assert(errors.As(err, &ce), qt.IsTrue)
	c.Assert(d.Sent(), qt.HasLen, 0)
	c.Assert(d.Connects(), qt.Equals, 1)
}

// Tombstones are sent without value, empty payloads with an empty one.
func TestSendPayloads(t *testing.T) {
	d := &clienttest.Driver{}
	p, err := producer.New[string](newConfig(0), d, codec.String(), producer.Topic("other"))
	require.NoError(t, err)

	require.NoError(t, p.Send(context.Background(), message.Tombstone[string](message.StrKey("gone"))))
	require.NoError(t, p.Send(context.Background(), message.New("")))
	require.NoError(t, p.Send(context.Background(), message.New("long payload to grow the buffer")))
	require.NoError(t, p.Send(context.Background(), message.New("short")))

	sent := d.Sent()
	require.Len(t, sent, 4)
	require.Equal(t, "other", sent[0].Topic)
	require.Nil(t, sent[0].Value)
	require.Equal(t, []byte("gone"), sent[0].Key)
	require.NotNil(t, sent[1].Value)
	require.Len(t, sent[1].Value, 0)
	require.Nil(t, sent[1].Key)
	require.Nil(t, sent[1].TimestampMs)
	require.Equal(t, "short", string(sent[3].Value))
	require.Equal(t, 1, d.Connects())
}

// A cancelled context stops Send.
func TestSendCancelled(t *testing.T) {
	c := qt.New(t)

	d := &clienttest.Driver{}
	p := newProducer(c, 1, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Send(ctx, message.New("hello"))
	c.Assert(err, qt.Equals, context.Canceled)
}

func TestNew(t *testing.T) {
	c := qt.New(t)

	cfg := newConfig(0)
	cfg.Topic = ""
	_, err := producer.New[string](cfg, &clienttest.Driver{}, codec.String())
	c.Assert(err, qt.ErrorMatches, `producer: no topic configured`)

	_, err = producer.New[string](cfg, &clienttest.Driver{}, codec.String(), producer.Topic("t"))
	c.Assert(err, qt.IsNil)

	cfg.Brokers = nil
	_, err = producer.New[string](cfg, &clienttest.Driver{}, codec.String(), producer.Topic("t"))
	c.Assert(err, qt.ErrorMatches, `invalid config: .*`)
}
