package sarama

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/heetch/relay/client"
)

// item is either a record or an error.
type item struct {
	rec *client.Record
	err error
}

// consumer runs a consumer group session in the background and hands
// its records and errors to Receive one at a time.
type consumer struct {
	group  sarama.ConsumerGroup
	eof    bool
	logger *zap.Logger

	items  chan item
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newConsumer(group sarama.ConsumerGroup, eof bool, logger *zap.Logger) *consumer {
	ctx, cancel := context.WithCancel(context.Background())
	c := &consumer{
		group:  group,
		eof:    eof,
		logger: logger,
		items:  make(chan item),
		ctx:    ctx,
		cancel: cancel,
	}
	c.wg.Add(1)
	go c.forwardErrors()
	return c
}

// Subscribe starts consuming topics. It must be called at most once.
func (c *consumer) Subscribe(topics []string) error {
	if len(topics) == 0 {
		return errors.New("no topics")
	}
	c.wg.Add(1)
	go c.run(topics)
	return nil
}

// run joins the group and rejoins it after each rebalance until the
// consumer is closed.
func (c *consumer) run(topics []string) {
	defer c.wg.Done()
	h := &groupHandler{items: c.items, eof: c.eof}
	for {
		err := c.group.Consume(c.ctx, topics, h)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			c.push(item{err: err})
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
		}
	}
}

func (c *consumer) forwardErrors() {
	defer c.wg.Done()
	for err := range c.group.Errors() {
		c.push(item{err: err})
	}
}

func (c *consumer) push(it item) {
	select {
	case c.items <- it:
	case <-c.ctx.Done():
	}
}

func (c *consumer) Receive(ctx context.Context) (*client.Record, error) {
	select {
	case it := <-c.items:
		return it.rec, it.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *consumer) Close() error {
	c.cancel()
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	items chan<- item
	eof   bool
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks each message once Receive has taken it.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !h.push(ctx, item{rec: record(msg)}) {
				return nil
			}
			sess.MarkMessage(msg, "")
			if h.eof && msg.Offset+1 >= claim.HighWaterMarkOffset() {
				eof := &client.PartitionEOF{
					Topic:     msg.Topic,
					Partition: msg.Partition,
					Offset:    msg.Offset + 1,
				}
				if !h.push(ctx, item{err: eof}) {
					return nil
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *groupHandler) push(ctx context.Context, it item) bool {
	select {
	case h.items <- it:
		return true
	case <-ctx.Done():
		return false
	}
}

func record(msg *sarama.ConsumerMessage) *client.Record {
	return &client.Record{
		Topic:       msg.Topic,
		Key:         msg.Key,
		Value:       msg.Value,
		TimestampMs: client.TimestampMs(msg.Timestamp),
		Partition:   msg.Partition,
		Offset:      msg.Offset,
	}
}
