package sarama

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
)

// consumerGroupClaim implements sarama.ConsumerGroupClaim.
type consumerGroupClaim struct {
	ch    chan *sarama.ConsumerMessage
	topic string
	hwm   int64
}

func (c consumerGroupClaim) Topic() string {
	return c.topic
}

func (consumerGroupClaim) Partition() int32 {
	return 0
}

func (consumerGroupClaim) InitialOffset() int64 {
	return 0
}

func (c consumerGroupClaim) HighWaterMarkOffset() int64 {
	return c.hwm
}

func (c consumerGroupClaim) Messages() <-chan *sarama.ConsumerMessage {
	return c.ch
}

// consumerGroupSession implements sarama.ConsumerGroupSession and
// records the marked offsets.
type consumerGroupSession struct {
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (*consumerGroupSession) Claims() map[string][]int32 { return nil }
func (*consumerGroupSession) MemberID() string           { return "" }
func (*consumerGroupSession) GenerationID() int32        { return 0 }
func (*consumerGroupSession) Commit()                    {}

func (*consumerGroupSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
}

func (*consumerGroupSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
}

func (s *consumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *consumerGroupSession) Marked() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

func (s *consumerGroupSession) Context() context.Context { return s.ctx }

// consumerGroup implements sarama.ConsumerGroup with a single claim.
type consumerGroup struct {
	claim consumerGroupClaim
	// consumeErr is returned by Consume instead of consuming.
	consumeErr error

	errs      chan error
	closeOnce sync.Once

	mu       sync.Mutex
	topics   [][]string
	sessions []*consumerGroupSession
}

func newConsumerGroup(hwm int64, msgs ...*sarama.ConsumerMessage) *consumerGroup {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &consumerGroup{
		claim: consumerGroupClaim{ch: ch, topic: "events", hwm: hwm},
		errs:  make(chan error, 1),
	}
}

func (g *consumerGroup) Consume(ctx context.Context, topics []string, h sarama.ConsumerGroupHandler) error {
	g.mu.Lock()
	g.topics = append(g.topics, topics)
	sess := &consumerGroupSession{ctx: ctx}
	g.sessions = append(g.sessions, sess)
	g.mu.Unlock()
	if g.consumeErr != nil {
		return g.consumeErr
	}
	if err := h.Setup(sess); err != nil {
		return err
	}
	if err := h.ConsumeClaim(sess, g.claim); err != nil {
		return err
	}
	return h.Cleanup(sess)
}

func (g *consumerGroup) Errors() <-chan error { return g.errs }

func (g *consumerGroup) Close() error {
	g.closeOnce.Do(func() { close(g.errs) })
	return nil
}

func (*consumerGroup) Pause(map[string][]int32)  {}
func (*consumerGroup) Resume(map[string][]int32) {}
func (*consumerGroup) PauseAll()                 {}
func (*consumerGroup) ResumeAll()                {}
