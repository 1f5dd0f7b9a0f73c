// Package consumer reads messages from Kafka topics and decodes their
// payload.
//
// Create a Consumer with New, passing a configuration, a client
// driver and a decoder for the payloads:
//
//	c, err := consumer.New[Event](cfg, confluent.New(), codec.JSON[Event]())
//
// Stream returns an iterator over the messages of the given topics.
// Connecting, subscribing and reconnecting after fatal errors happen
// behind the scenes, within the limits of cfg.ReconnectCount:
//
//	for msg, err := range c.Stream(ctx, "events") {
//		if err != nil {
//			// Transient and decoding errors do not end the stream.
//			// The last item of a stream that gave up is a
//			// conn.ExhaustedError.
//			continue
//		}
//		// Use msg.
//	}
//
// A message that cannot be decoded is reported as a conn.CodecError
// and the stream goes on with the next one. A topic that only holds
// malformed messages will therefore never end the stream.
//
// Serve is a convenience that passes each message to a Handler until
// the context is done or the stream gives up.
package consumer
