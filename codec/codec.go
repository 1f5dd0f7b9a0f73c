// Package codec converts message payloads to and from bytes.
package codec

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// A Codec can encode and decode values of type M.
type Codec[M any] interface {
	Encoder[M]
	Decoder[M]
}

type codecFunc[M any] struct {
	EncoderFunc[M]
	DecoderFunc[M]
}

// New returns a Codec using the given functions.
func New[M any](encode func(v M, buf *bytes.Buffer) error, decode func(data []byte) (M, error)) Codec[M] {
	return codecFunc[M]{encode, decode}
}

// Bytes passes raw data through without touching it.
func Bytes() Codec[[]byte] {
	return New(
		func(v []byte, buf *bytes.Buffer) error {
			buf.Write(v)
			return nil
		},
		func(data []byte) ([]byte, error) {
			return data, nil
		},
	)
}

// String encodes and decodes strings as their raw bytes.
func String() Codec[string] {
	return New(
		func(v string, buf *bytes.Buffer) error {
			buf.WriteString(v)
			return nil
		},
		func(data []byte) (string, error) {
			return string(data), nil
		},
	)
}

// JSON Codec handles JSON encoding.
func JSON[M any]() Codec[M] {
	return New(
		func(v M, buf *bytes.Buffer) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			buf.Write(data)
			return nil
		},
		func(data []byte) (M, error) {
			var v M
			err := json.Unmarshal(data, &v)
			return v, err
		},
	)
}

// Int64 Codec handles int64 encoding, as decimal text.
func Int64() Codec[int64] {
	return New(
		func(v int64, buf *bytes.Buffer) error {
			buf.Write(strconv.AppendInt(buf.AvailableBuffer(), v, 10))
			return nil
		},
		func(data []byte) (int64, error) {
			i, err := strconv.ParseInt(string(data), 10, 64)
			if err != nil {
				return 0, errors.Errorf("%q is not a valid int64", data)
			}
			return i, nil
		},
	)
}

// Float64 Codec handles float64 encoding, as decimal text.
func Float64() Codec[float64] {
	return New(
		func(v float64, buf *bytes.Buffer) error {
			buf.Write(strconv.AppendFloat(buf.AvailableBuffer(), v, 'g', -1, 64))
			return nil
		},
		func(data []byte) (float64, error) {
			f, err := strconv.ParseFloat(string(data), 64)
			if err != nil {
				return 0, errors.Errorf("%q is not a valid float64", data)
			}
			return f, nil
		},
	)
}
