package codec

import "bytes"

// An Encoder writes the payload of a message into buf.
//
// Callers reuse buf across messages and reset it before each call,
// so implementations must only append to it.
type Encoder[M any] interface {
	Encode(v M, buf *bytes.Buffer) error
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc[M any] func(v M, buf *bytes.Buffer) error

func (f EncoderFunc[M]) Encode(v M, buf *bytes.Buffer) error {
	return f(v, buf)
}

// Encode is a convenience that encodes v into a new byte slice.
func Encode[M any](enc Encoder[M], v M) ([]byte, error) {
	var buf bytes.Buffer
	if err := enc.Encode(v, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
