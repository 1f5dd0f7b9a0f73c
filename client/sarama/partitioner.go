// The hashing code in this file is derived from
// https://github.com/burdiyan/kafkautil/blob/3e3bfeae0ffaf3b3d9b431463d9e58f840173188/partitioner.go
//
// It was licensed under the MIT license. Original copyright notice:
//
// MIT License
//
// Copyright (c) 2019 Alexandr Burdiyan
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package sarama

import (
	"hash"

	"github.com/Shopify/sarama"
)

// NewPartitioner returns a partitioner that places keyed messages on
// the same partitions as librdkafka's murmur2 partitioner and the JVM
// clients do, so that both drivers can produce to the same topic.
func NewPartitioner(topic string) sarama.Partitioner {
	return sarama.NewCustomHashPartitioner(newHasher)(topic)
}

// murmurHash is the hash.Hash32 sarama needs to call murmur2. sarama
// writes each key once, so it does not support streaming.
type murmurHash struct {
	sum int32
}

func newHasher() hash.Hash32 {
	return new(murmurHash)
}

func (h *murmurHash) Write(data []byte) (int, error) {
	h.sum = murmur2(data)
	return len(data), nil
}

func (h *murmurHash) Reset()         { h.sum = 0 }
func (h *murmurHash) Size() int      { return 4 }
func (h *murmurHash) BlockSize() int { return 4 }

func (h *murmurHash) Sum(in []byte) []byte {
	s := h.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

// Sum32 drops the sign bit the way the JVM clients do.
func (h *murmurHash) Sum32() uint32 {
	return uint32(h.sum & 0x7fffffff)
}

// murmur2 is the hash function of the Kafka JVM clients, see
// https://github.com/apache/kafka/blob/1.0.0/clients/src/main/java/org/apache/kafka/common/utils/Utils.java#L353
func murmur2(data []byte) int32 {
	const (
		seed uint32 = 0x9747b28c
		m    int32  = 0x5bd1e995
		r           = 24
	)
	n := int32(len(data))
	h := int32(seed ^ uint32(n))

	for i := int32(0); i+4 <= n; i += 4 {
		k := int32(data[i]) | int32(data[i+1])<<8 | int32(data[i+2])<<16 | int32(data[i+3])<<24
		k *= m
		k ^= int32(uint32(k) >> r)
		k *= m
		h *= m
		h ^= k
	}

	tail := data[n&^3:]
	switch len(tail) {
	case 3:
		h ^= int32(tail[2]) << 16
		fallthrough
	case 2:
		h ^= int32(tail[1]) << 8
		fallthrough
	case 1:
		h ^= int32(tail[0])
		h *= m
	}

	h ^= int32(uint32(h) >> 13)
	h *= m
	h ^= int32(uint32(h) >> 15)
	return h
}
