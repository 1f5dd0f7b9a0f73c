package sarama

import (
	"context"
	"time"

	"github.com/Shopify/sarama"

	"github.com/heetch/relay/client"
)

type producer struct {
	sp sarama.SyncProducer
}

// NewProducerFrom returns a producer handle sending through sp. The
// handle owns sp and closes it.
func NewProducerFrom(sp sarama.SyncProducer) client.Producer {
	return &producer{sp: sp}
}

// Send waits for all in-sync replicas to acknowledge rec. sarama has
// no bounded local queue, so queueTimeout is not used.
func (p *producer) Send(ctx context.Context, rec *client.Record, _ time.Duration) error {
	msg := &sarama.ProducerMessage{
		Topic: rec.Topic,
	}
	// sarama reads the value after Send may have returned.
	if rec.Key != nil {
		msg.Key = sarama.ByteEncoder(append([]byte(nil), rec.Key...))
	}
	if rec.Value != nil {
		msg.Value = sarama.ByteEncoder(append([]byte{}, rec.Value...))
	}
	if rec.TimestampMs != nil {
		msg.Timestamp = time.UnixMilli(*rec.TimestampMs)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.sp.SendMessage(msg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *producer) Close() error {
	return p.sp.Close()
}
