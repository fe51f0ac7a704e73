package runtime

import (
	"fmt"
	"reflect"
)

// WildcardChannel is the catch-all channel name. Bindings registered on it
// observe dispatches on every channel; a dispatch on it reaches only
// bindings that also use it.
const WildcardChannel = ""

// MessageType identifies a concrete payload type in the registry. It is a
// plain comparable string derived from the Go type, so it prints readable in
// logs and errors and never outlives the type it names.
type MessageType string

// Message is the contract every payload type satisfies. Payloads are
// pointer-shaped structs embedding BaseMessage; every receiver shares the
// same pointer and must treat the payload as immutable.
type Message interface {
	Detector() string
}

// BaseMessage carries the originating-detector tag, for embedding in payload
// types. The zero value is a global message.
type BaseMessage struct {
	detector string
}

// NewBaseMessage tags a payload with the detector that produced it.
func NewBaseMessage(detector string) BaseMessage {
	return BaseMessage{detector: detector}
}

// Detector returns the name of the producing detector, "" for global
// messages.
func (b BaseMessage) Detector() string { return b.detector }

// MessageTypeOf resolves the registry key for a concrete message value.
func MessageTypeOf(msg Message) MessageType {
	return MessageType(fmt.Sprintf("%T", msg))
}

// MessageTypeFor resolves the registry key for a message type parameter.
// reflect.TypeFor renders the same string %T prints for a value of M, so
// registration and dispatch always agree on keys.
func MessageTypeFor[M Message]() MessageType {
	return MessageType(reflect.TypeFor[M]().String())
}
