package runtime

import (
	"context"
	"fmt"
)

// DelegateKind tags the closed set of delegate variants.
type DelegateKind uint8

const (
	// KindListener invokes a handler function per delivery.
	KindListener DelegateKind = iota
	// KindSingleBind overwrites a message slot; the last delivery wins.
	KindSingleBind
	// KindMultiBind appends to a message slice in delivery order.
	KindMultiBind
	// KindProducer marks a declared dispatch opportunity, not a delivery
	// target. It never appears in the delegate registry, only in queries.
	KindProducer
)

func (k DelegateKind) String() string {
	switch k {
	case KindListener:
		return "listener"
	case KindSingleBind:
		return "single-bind"
	case KindMultiBind:
		return "multi-bind"
	case KindProducer:
		return "producer"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// delegate is one registration row. The variant behaviour lives entirely in
// apply, a closure built at registration that recovers the concrete message
// type; kind only tags the row for queries, logs and stats.
type delegate struct {
	kind     DelegateKind
	receiver Module
	msgType  MessageType
	channel  string
	required bool
	seq      uint64
	apply    func(ctx context.Context, msg Message) error
}

func (d *delegate) info() BindingInfo {
	return BindingInfo{
		Receiver:    d.receiver.Name(),
		MessageType: d.msgType,
		Channel:     d.channel,
		Kind:        d.kind,
		Required:    d.required,
		Sequence:    d.seq,
	}
}

// BindingInfo is the read-only view of one registration, exposed for wiring
// validation and introspection.
type BindingInfo struct {
	Receiver    string       `json:"receiver"`
	MessageType MessageType  `json:"message_type"`
	Channel     string       `json:"channel"`
	Kind        DelegateKind `json:"kind"`
	Required    bool         `json:"required"`
	Sequence    uint64       `json:"sequence"`
}

// ProducerInfo is the read-only view of one producer declaration.
type ProducerInfo struct {
	Producer    string      `json:"producer"`
	MessageType MessageType `json:"message_type"`
	Channel     string      `json:"channel"`
}

// mustConvert recovers the concrete payload type inside apply. Registration
// keys delegates by exactly the type the closure asserts, so a mismatch
// means the registry itself is corrupt, not that a caller misused the API.
func mustConvert[M Message](d *delegate, msg Message) M {
	payload, ok := msg.(M)
	if !ok {
		panic(fmt.Sprintf("simflow: delegate for %q received %T, registry keys are corrupt", d.msgType, msg))
	}
	return payload
}

func newListenerDelegate[M Message](receiver Module, handler func(context.Context, M) error) *delegate {
	d := &delegate{kind: KindListener, receiver: receiver}
	d.apply = func(ctx context.Context, msg Message) error {
		return handler(ctx, mustConvert[M](d, msg))
	}
	return d
}

func newSingleBindDelegate[M Message](receiver Module, slot *M) *delegate {
	d := &delegate{kind: KindSingleBind, receiver: receiver}
	d.apply = func(_ context.Context, msg Message) error {
		*slot = mustConvert[M](d, msg)
		return nil
	}
	return d
}

func newMultiBindDelegate[M Message](receiver Module, slot *[]M) *delegate {
	d := &delegate{kind: KindMultiBind, receiver: receiver}
	d.apply = func(_ context.Context, msg Message) error {
		*slot = append(*slot, mustConvert[M](d, msg))
		return nil
	}
	return d
}
