package consumer

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/heetch/relay/conn"
	"github.com/heetch/relay/message"
)

// Handler is the interface for handling consumed messages.
// See HandlerFunc for a function-based implementation.
type Handler[M any] interface {
	// HandleMessage handles the given message. It is responsible
	// for any retries necessary, and should abort as soon as possible
	// when the context is done.
	// The stream moves on to the next message even if an error is returned.
	HandleMessage(context.Context, *message.Message[M]) error
}

// ErrorHandler may be implemented by a Handler to be told about
// errors that do not end the stream. Otherwise they are logged.
type ErrorHandler interface {
	HandleError(context.Context, error)
}

// HandlerFunc is a function type that implements Handler.
type HandlerFunc[M any] func(context.Context, *message.Message[M]) error

// HandleMessage implements Handler.HandleMessage by calling f.
func (f HandlerFunc[M]) HandleMessage(ctx context.Context, m *message.Message[M]) error {
	return f(ctx, m)
}

// Serve passes the messages of Stream(ctx, topics...) to h. It blocks
// until ctx is done, in which case it returns nil, or until the stream
// gives up, in which case it returns the terminal error.
func (c *Consumer[M]) Serve(ctx context.Context, h Handler[M], topics ...string) error {
	eh, _ := h.(ErrorHandler)
	for msg, err := range c.Stream(ctx, topics...) {
		if err != nil {
			if errors.Is(err, conn.ErrExhausted) || errors.Is(err, ErrNoTopics) || errors.Is(err, conn.ErrNoConnection) {
				return err
			}
			if eh != nil {
				eh.HandleError(ctx, err)
			} else {
				c.opts.logger.Error("cannot receive message", zap.Error(err))
			}
			continue
		}
		if err := h.HandleMessage(ctx, msg); err != nil {
			c.opts.logger.Error("message handler failed",
				zap.Int32("partition", msg.Partition),
				zap.Error(err),
			)
		}
	}
	return nil
}
