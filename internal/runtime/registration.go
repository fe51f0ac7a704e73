package runtime

import (
	"context"

	errspkg "github.com/drblury/simflow/internal/runtime/errors"
)

// BindOption adjusts a single registration.
type BindOption func(*bindConfig)

type bindConfig struct {
	channel  string
	required bool
}

// WithChannel restricts the registration to a named channel. The default is
// the wildcard channel, which observes dispatches on every channel.
func WithChannel(channel string) BindOption {
	return func(cfg *bindConfig) { cfg.channel = channel }
}

// Required marks a consumer input as mandatory: wiring validation fails the
// setup when no declared producer can feed it.
func Required() BindOption {
	return func(cfg *bindConfig) { cfg.required = true }
}

func applyBindOptions(opts []BindOption) bindConfig {
	cfg := bindConfig{channel: WildcardChannel}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RegisterListener attaches a handler invoked synchronously for every
// message of type M dispatched on the option channel. A handler error stops
// the surrounding dispatch and propagates to the producer.
func RegisterListener[M Message](m *Messenger, receiver Module, handler func(context.Context, M) error, opts ...BindOption) error {
	if m == nil {
		return errspkg.ErrMessengerRequired
	}
	if receiver == nil {
		return errspkg.ErrReceiverRequired
	}
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}

	cfg := applyBindOptions(opts)
	d := newListenerDelegate(receiver, handler)
	d.msgType = MessageTypeFor[M]()
	d.channel = cfg.channel
	d.required = cfg.required
	return m.addDelegate(d)
}

// BindSingle points a message slot at the registry: every delivery of M on
// the option channel overwrites *slot, so after an event the slot holds the
// message dispatched last. The messenger never clears the slot; receivers
// reset it between events when that matters to them.
func BindSingle[M Message](m *Messenger, receiver Module, slot *M, opts ...BindOption) error {
	if m == nil {
		return errspkg.ErrMessengerRequired
	}
	if receiver == nil {
		return errspkg.ErrReceiverRequired
	}
	if slot == nil {
		return errspkg.ErrBindTargetRequired
	}

	cfg := applyBindOptions(opts)
	d := newSingleBindDelegate(receiver, slot)
	d.msgType = MessageTypeFor[M]()
	d.channel = cfg.channel
	d.required = cfg.required
	return m.addDelegate(d)
}

// BindMulti points a message slice at the registry: every delivery of M on
// the option channel appends to *slot, preserving dispatch order across the
// whole run. The messenger never truncates the slice; receivers that want
// per-event contents clear it themselves.
func BindMulti[M Message](m *Messenger, receiver Module, slot *[]M, opts ...BindOption) error {
	if m == nil {
		return errspkg.ErrMessengerRequired
	}
	if receiver == nil {
		return errspkg.ErrReceiverRequired
	}
	if slot == nil {
		return errspkg.ErrBindTargetRequired
	}

	cfg := applyBindOptions(opts)
	d := newMultiBindDelegate(receiver, slot)
	d.msgType = MessageTypeFor[M]()
	d.channel = cfg.channel
	d.required = cfg.required
	return m.addDelegate(d)
}

// DeclareProducer records that producer will dispatch messages of type M on
// the option channel. Declarations feed wiring validation; dispatching
// without one still works, it just cannot satisfy anyone's Required input.
func DeclareProducer[M Message](m *Messenger, producer Module, opts ...BindOption) error {
	if m == nil {
		return errspkg.ErrMessengerRequired
	}
	if producer == nil {
		return errspkg.ErrModuleRequired
	}

	cfg := applyBindOptions(opts)
	return m.addProducer(producer, MessageTypeFor[M](), cfg.channel)
}
