package codec

import (
	"bytes"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// Proto Codec handles protocol buffers messages. newFn must return a
// new empty message to decode into.
func Proto[M proto.Message](newFn func() M) Codec[M] {
	return New(
		func(v M, buf *bytes.Buffer) error {
			data, err := proto.MarshalOptions{}.MarshalAppend(buf.AvailableBuffer(), v)
			if err != nil {
				return errors.Wrap(err, "cannot marshal protobuf message")
			}
			buf.Write(data)
			return nil
		},
		func(data []byte) (M, error) {
			m := newFn()
			if err := proto.Unmarshal(data, m); err != nil {
				var zero M
				return zero, errors.Wrap(err, "cannot unmarshal protobuf message")
			}
			return m, nil
		},
	)
}
