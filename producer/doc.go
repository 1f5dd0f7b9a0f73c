// Package producer provides types for producing messages to Kafka.
//
// A Producer sends anything implementing message.KafkaMessage, such
// as a *message.Message, encoding its payload with the Encoder it was
// created with:
//
//	p, err := producer.New[Event](cfg, confluent.New(), codec.JSON[Event](), producer.Topic("events"))
//	...
//	err = p.Send(ctx, message.New(ev, message.StrKey(ev.UserID)))
//
// Each call to Send connects if needed and makes at most one attempt
// per connection. Only fatal client errors lead to a reconnection and
// a new attempt, within the limits of the configured reconnect budget.
// Encoding errors and other client errors are returned at once.
//
// A Producer handles one Send at a time; concurrent calls are
// serialized.
package producer
