package codec

// A Decoder turns the payload of a received message into a value.
type Decoder[M any] interface {
	Decode(data []byte) (M, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc[M any] func(data []byte) (M, error)

func (f DecoderFunc[M]) Decode(data []byte) (M, error) {
	return f(data)
}
