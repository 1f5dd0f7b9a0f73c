// The message package contains the Message type. Consumers yield
// Messages and Producers send anything implementing KafkaMessage,
// which Message does.
//
// You can create a new Message by calling New:
//
//	msg := message.New("simple string message")
//
// A Message without payload is a tombstone; create one with Tombstone:
//
//	msg := message.Tombstone[string](message.StrKey("user-42"))
//
// New and Tombstone can also be passed zero, one or many Options. An
// Option is a function that receives a pointer to the Meta part of
// the Message and can modify it directly before it is returned.
//
// For example, to create a keyed Message with an explicit timestamp:
//
//	msg := message.New("cold potatoes ain't hot!", message.StrKey("potatoes"), message.Timestamp(t))
package message
