package codec_test

import (
	"bytes"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/heetch/relay/codec"
)

type point struct {
	X, Y int
}

func TestEncoding(t *testing.T) {
	tests := []struct {
		name     string
		encode   func(buf *bytes.Buffer) error
		expected string
	}{
		{"bytes", func(buf *bytes.Buffer) error { return codec.Bytes().Encode([]byte("hello"), buf) }, "hello"},
		{"string", func(buf *bytes.Buffer) error { return codec.String().Encode("hello", buf) }, "hello"},
		{"int64", func(buf *bytes.Buffer) error { return codec.Int64().Encode(-10, buf) }, "-10"},
		{"float64", func(buf *bytes.Buffer) error { return codec.Float64().Encode(3.14, buf) }, "3.14"},
		{"json/string", func(buf *bytes.Buffer) error { return codec.JSON[string]().Encode("hello", buf) }, `"hello"`},
		{"json/struct", func(buf *bytes.Buffer) error { return codec.JSON[point]().Encode(point{1, 2}, buf) }, `{"X":1,"Y":2}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := test.encode(&buf)
			require.NoError(t, err)
			require.Equal(t, test.expected, buf.String())
		})
	}
}

func TestDecodingErrors(t *testing.T) {
	tests := []struct {
		name      string
		decode    func() error
		errString string
	}{
		{"int64", func() error { _, err := codec.Int64().Decode([]byte("hello")); return err }, `"hello" is not a valid int64`},
		{"float64", func() error { _, err := codec.Float64().Decode([]byte("pi")); return err }, `"pi" is not a valid float64`},
		{"json", func() error { _, err := codec.JSON[point]().Decode([]byte("{")); return err }, "unexpected end of JSON input"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.EqualError(t, test.decode(), test.errString)
		})
	}
}

// Ensure that encoding appends to the buffer so that callers can
// reuse it after a reset.
func TestEncodeReusesBuffer(t *testing.T) {
	c := qt.New(t)

	var buf bytes.Buffer
	enc := codec.Int64()
	c.Assert(enc.Encode(123456789, &buf), qt.IsNil)
	c.Assert(buf.String(), qt.Equals, "123456789")
	capBefore := buf.Cap()

	buf.Reset()
	c.Assert(enc.Encode(7, &buf), qt.IsNil)
	c.Assert(buf.String(), qt.Equals, "7")
	c.Assert(buf.Cap(), qt.Equals, capBefore)
}

func TestRoundTrip(t *testing.T) {
	c := qt.New(t)

	c.Run("bytes", func(c *qt.C) {
		data, err := codec.Encode(codec.Bytes(), []byte{0, 1, 2, 255})
		c.Assert(err, qt.IsNil)
		v, err := codec.Bytes().Decode(data)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.DeepEquals, []byte{0, 1, 2, 255})
	})

	c.Run("int64", func(c *qt.C) {
		data, err := codec.Encode[int64](codec.Int64(), -42)
		c.Assert(err, qt.IsNil)
		v, err := codec.Int64().Decode(data)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, int64(-42))
	})

	c.Run("float64", func(c *qt.C) {
		data, err := codec.Encode[float64](codec.Float64(), -3.14)
		c.Assert(err, qt.IsNil)
		v, err := codec.Float64().Decode(data)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, -3.14)
	})

	c.Run("json", func(c *qt.C) {
		data, err := codec.Encode(codec.JSON[point](), point{3, 4})
		c.Assert(err, qt.IsNil)
		v, err := codec.JSON[point]().Decode(data)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.Equals, point{3, 4})
	})

	c.Run("proto", func(c *qt.C) {
		pc := codec.Proto(func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })
		data, err := codec.Encode(pc, wrapperspb.String("hello"))
		c.Assert(err, qt.IsNil)
		v, err := pc.Decode(data)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.CmpEquals(protocmp.Transform()), wrapperspb.String("hello"))
	})
}

func TestProtoDecodeError(t *testing.T) {
	c := qt.New(t)

	pc := codec.Proto(func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })
	_, err := pc.Decode([]byte{0xff, 0xff})
	c.Assert(err, qt.ErrorMatches, `cannot unmarshal protobuf message: .*`)
}

func TestFuncAdapters(t *testing.T) {
	c := qt.New(t)

	errBad := errors.New("bad")
	cd := codec.New(
		func(v int, buf *bytes.Buffer) error {
			if v < 0 {
				return errBad
			}
			buf.WriteByte(byte(v))
			return nil
		},
		func(data []byte) (int, error) {
			if len(data) != 1 {
				return 0, errBad
			}
			return int(data[0]), nil
		},
	)

	data, err := codec.Encode[int](cd, 7)
	c.Assert(err, qt.IsNil)
	c.Assert(data, qt.DeepEquals, []byte{7})

	_, err = codec.Encode[int](cd, -1)
	c.Assert(errors.Is(err, errBad), qt.IsTrue)

	var dec codec.Decoder[int] = codec.DecoderFunc[int](cd.Decode)
	v, err := dec.Decode([]byte{9})
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, 9)
}
