package conn

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoConnection is returned when an operation is attempted
	// without an established connection.
	ErrNoConnection = errors.New("no connection: attempting to send or receive without an established connection")

	// ErrExhausted matches every ExhaustedError.
	ErrExhausted = errors.New("reconnect budget exhausted")
)

// TransportError wraps an error returned by the Kafka client.
type TransportError struct {
	// Op is the operation that failed: "connect", "receive" or "send".
	Op string
	// Fatal is set when the connection had to be dropped.
	Fatal bool
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("kafka %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CodecError wraps an error returned by an Encoder or a Decoder.
// Codec errors never cause a reconnection.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("message %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// ExhaustedError is the terminal error reported once the reconnect
// budget is spent. It wraps the last connection or fatal error.
type ExhaustedError struct {
	// Attempts is the number of failures that spent the budget.
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d failed attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}
