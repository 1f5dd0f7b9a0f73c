package sarama

import (
	"context"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/heetch/relay/client"
	"github.com/heetch/relay/config"
)

func TestConfig(t *testing.T) {
	c := qt.New(t)

	cfg := config.NewConfig("group", "b1:9092")
	cfg.SessionTimeoutMs = config.Uint32(9000)
	cfg.AutoCommit = config.Bool(false)
	cfg.AutoOffsetReset = config.OffsetResetLatest

	var tlsSet bool
	d := New(WithConfig(func(sc *sarama.Config) {
		sc.Net.TLS.Enable = true
		tlsSet = true
	}))
	sc, err := d.Config(client.Build(cfg))
	c.Assert(err, qt.IsNil)
	c.Assert(tlsSet, qt.IsTrue)
	c.Assert(sc.ClientID, qt.Equals, ClientID)
	c.Assert(sc.Version, qt.Equals, sarama.V1_0_0_0)
	c.Assert(sc.Consumer.Group.Session.Timeout, qt.Equals, 9*time.Second)
	c.Assert(sc.Consumer.Group.Heartbeat.Interval, qt.Equals, 3*time.Second)
	c.Assert(sc.Consumer.Offsets.AutoCommit.Enable, qt.IsFalse)
	c.Assert(sc.Consumer.Offsets.Initial, qt.Equals, sarama.OffsetNewest)
	c.Assert(sc.Producer.Timeout, qt.Equals, 500*time.Millisecond)
	c.Assert(sc.Producer.MaxMessageBytes, qt.Equals, int(config.DefaultMaxMessageSize))
	c.Assert(sc.Producer.RequiredAcks, qt.Equals, sarama.WaitForAll)
	c.Assert(sc.Producer.Return.Successes, qt.IsTrue)

	for _, reset := range []config.OffsetReset{config.OffsetResetEarliest, config.OffsetResetNone} {
		cfg.AutoOffsetReset = reset
		sc, err := New().Config(client.Build(cfg))
		c.Assert(err, qt.IsNil)
		c.Assert(sc.Consumer.Offsets.Initial, qt.Equals, sarama.OffsetOldest, qt.Commentf("%s", reset))
	}

	_, err = New(WithConfig(func(sc *sarama.Config) {
		sc.Producer.Timeout = 0
	})).Config(client.Build(cfg))
	c.Assert(err, qt.ErrorMatches, `invalid sarama config: .*`)
}

func TestIsFatal(t *testing.T) {
	c := qt.New(t)

	c.Assert(IsFatal(sarama.ErrOutOfBrokers), qt.IsTrue)
	c.Assert(IsFatal(errors.Wrap(sarama.ErrClosedConsumerGroup, "consume")), qt.IsTrue)
	c.Assert(IsFatal(&sarama.ProducerError{Err: sarama.ErrInvalidProducerEpoch}), qt.IsTrue)
	c.Assert(IsFatal(sarama.ErrNotLeaderForPartition), qt.IsFalse)
	c.Assert(IsFatal(errors.New("timed out")), qt.IsFalse)
	c.Assert(New().IsFatal(sarama.ErrClosedClient), qt.IsTrue)
}

func TestConsumerReceive(t *testing.T) {
	c := qt.New(t)

	ts := time.UnixMilli(1700000000000)
	group := newConsumerGroup(2,
		&sarama.ConsumerMessage{Topic: "events", Partition: 0, Offset: 0, Key: []byte("k"), Value: []byte("a"), Timestamp: ts},
		&sarama.ConsumerMessage{Topic: "events", Partition: 0, Offset: 1, Value: []byte("b")},
	)
	cs := newConsumer(group, true, zap.NewNop())
	c.Assert(cs.Subscribe([]string{"events"}), qt.IsNil)

	ctx := context.Background()
	rec, err := cs.Receive(ctx)
	c.Assert(err, qt.IsNil)
	ms := ts.UnixMilli()
	c.Assert(rec, qt.DeepEquals, &client.Record{
		Topic:       "events",
		Key:         []byte("k"),
		Value:       []byte("a"),
		TimestampMs: &ms,
	})

	rec, err = cs.Receive(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Offset, qt.Equals, int64(1))
	c.Assert(rec.TimestampMs, qt.IsNil)

	_, err = cs.Receive(ctx)
	c.Assert(err, qt.DeepEquals, error(&client.PartitionEOF{Topic: "events", Partition: 0, Offset: 2}))

	c.Assert(cs.Close(), qt.IsNil)
	c.Assert(group.topics, qt.DeepEquals, [][]string{{"events"}})
	c.Assert(group.sessions[0].Marked(), qt.DeepEquals, []int64{0, 1})
}

func TestConsumerWithoutEOF(t *testing.T) {
	c := qt.New(t)

	group := newConsumerGroup(1, &sarama.ConsumerMessage{Topic: "events", Value: []byte("a")})
	cs := newConsumer(group, false, zap.NewNop())
	c.Assert(cs.Subscribe([]string{"events"}), qt.IsNil)
	defer cs.Close()

	_, err := cs.Receive(context.Background())
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = cs.Receive(ctx)
	c.Assert(err, qt.Equals, context.DeadlineExceeded)
}

func TestConsumerErrors(t *testing.T) {
	c := qt.New(t)

	group := newConsumerGroup(0)
	cs := newConsumer(group, false, zap.NewNop())
	c.Assert(cs.Subscribe([]string{"events"}), qt.IsNil)

	group.errs <- sarama.ErrOffsetOutOfRange
	_, err := cs.Receive(context.Background())
	c.Assert(err, qt.Equals, error(sarama.ErrOffsetOutOfRange))
	c.Assert(IsFatal(err), qt.IsFalse)
	c.Assert(cs.Close(), qt.IsNil)

	group = newConsumerGroup(0)
	group.consumeErr = sarama.ErrClosedConsumerGroup
	cs = newConsumer(group, false, zap.NewNop())
	c.Assert(cs.Subscribe([]string{"events"}), qt.IsNil)
	_, err = cs.Receive(context.Background())
	c.Assert(err, qt.Equals, sarama.ErrClosedConsumerGroup)
	c.Assert(IsFatal(err), qt.IsTrue)
	c.Assert(cs.Close(), qt.IsNil)

	c.Assert(newConsumer(newConsumerGroup(0), false, zap.NewNop()).Subscribe(nil), qt.ErrorMatches, `no topics`)
}

func TestProducerSend(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewProducerFrom(sp)

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != "hello" {
			return errors.Errorf("unexpected value %q", val)
		}
		return nil
	})
	ts := int64(1700000000000)
	err := p.Send(context.Background(), &client.Record{Topic: "events", Key: []byte("k"), Value: []byte("hello"), TimestampMs: &ts}, 0)
	require.NoError(t, err)

	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err = p.Send(context.Background(), &client.Record{Topic: "events", Value: []byte("hello")}, 0)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.True(t, IsFatal(err))

	require.NoError(t, p.Close())
}
