package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/simflow/internal/runtime/errors"
	"github.com/drblury/simflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/simflow/internal/runtime/logging"
)

// Messenger routes typed messages between modules. All registration happens
// during the setup phase; Start seals the registry once, and every dispatch
// after that is a read-only walk on the caller's goroutine. The seal is the
// entire synchronization story for the registry itself; per-dispatch state
// (stats, hooks) carries its own locking.
type Messenger struct {
	log loggingpkg.ServiceLogger

	mu        sync.Mutex
	delegates map[MessageType]map[string][]*delegate
	producers []producerDecl
	feeders   map[MessageType]map[string]int
	seq       uint64

	running atomic.Bool

	hooks   DispatchHooks
	stats   *DispatchStats
	tracing bool
	tracer  oteltrace.Tracer
}

type producerDecl struct {
	module Module
	info   ProducerInfo
}

// MessengerOption customises a Messenger at construction.
type MessengerOption func(*Messenger)

// WithDispatchHooks installs lifecycle callbacks invoked around every
// dispatch. Repeated options chain instead of replacing.
func WithDispatchHooks(hooks DispatchHooks) MessengerOption {
	return func(m *Messenger) { m.hooks = m.hooks.Merge(hooks) }
}

// WithDispatchStats attaches a stats collector fed by every dispatch.
func WithDispatchStats(stats *DispatchStats) MessengerOption {
	return func(m *Messenger) { m.stats = stats }
}

// WithTracing wraps every dispatch in an OpenTelemetry span.
func WithTracing() MessengerOption {
	return func(m *Messenger) { m.tracing = true }
}

// NewMessenger creates an empty registry in the setup phase. A nil logger
// falls back to the nop logger.
func NewMessenger(log loggingpkg.ServiceLogger, opts ...MessengerOption) *Messenger {
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}
	m := &Messenger{
		log:       log,
		delegates: make(map[MessageType]map[string][]*delegate),
		feeders:   make(map[MessageType]map[string]int),
		tracer:    otel.Tracer("simflow-messenger"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Running reports whether Start has sealed the registry.
func (m *Messenger) Running() bool { return m.running.Load() }

// Start seals the registry and enables dispatch. The transition is one-way
// and happens exactly once; a second call fails.
func (m *Messenger) Start() error {
	if !m.running.CompareAndSwap(false, true) {
		return errspkg.ErrMessengerRunning
	}

	m.mu.Lock()
	delegates := m.delegateCountLocked()
	producers := len(m.producers)
	m.mu.Unlock()

	if m.stats != nil {
		m.stats.setDelegateCount(delegates)
	}
	m.log.Debug("messenger started", loggingpkg.LogFields{
		"delegates": delegates,
		"producers": producers,
	})
	return nil
}

func (m *Messenger) addDelegate(d *delegate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return errspkg.ErrMessengerRunning
	}

	m.seq++
	d.seq = m.seq

	byChannel, ok := m.delegates[d.msgType]
	if !ok {
		byChannel = make(map[string][]*delegate)
		m.delegates[d.msgType] = byChannel
	}
	byChannel[d.channel] = append(byChannel[d.channel], d)

	m.log.Trace("delegate registered", loggingpkg.LogFields{
		"receiver":     d.receiver.Name(),
		"message_type": string(d.msgType),
		"channel":      d.channel,
		"kind":         d.kind.String(),
		"required":     d.required,
	})
	return nil
}

func (m *Messenger) addProducer(module Module, msgType MessageType, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return errspkg.ErrMessengerRunning
	}

	m.producers = append(m.producers, producerDecl{
		module: module,
		info:   ProducerInfo{Producer: module.Name(), MessageType: msgType, Channel: channel},
	})
	byChannel, ok := m.feeders[msgType]
	if !ok {
		byChannel = make(map[string]int)
		m.feeders[msgType] = byChannel
	}
	byChannel[channel]++

	m.log.Trace("producer declared", loggingpkg.LogFields{
		"producer":     module.Name(),
		"message_type": string(msgType),
		"channel":      channel,
	})
	return nil
}

// Bindings returns a snapshot of every registration in registration order.
// The wiring layer walks this to validate required inputs before the run.
func (m *Messenger) Bindings() []BindingInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []BindingInfo
	for _, byChannel := range m.delegates {
		for _, list := range byChannel {
			for _, d := range list {
				out = append(out, d.info())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Producers returns a snapshot of every producer declaration in declaration
// order.
func (m *Messenger) Producers() []ProducerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ProducerInfo, 0, len(m.producers))
	for _, decl := range m.producers {
		out = append(out, decl.info)
	}
	return out
}

// HasProducerFor reports whether a binding on (msgType, channel) has at
// least one declared dispatch opportunity. A wildcard binding is fed by any
// producer of the type; a named binding by a producer on that channel or on
// the wildcard, since a wildcard producer picks its channel at run time.
func (m *Messenger) HasProducerFor(msgType MessageType, channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	byChannel := m.feeders[msgType]
	if len(byChannel) == 0 {
		return false
	}
	if channel == WildcardChannel {
		return true
	}
	return byChannel[channel] > 0 || byChannel[WildcardChannel] > 0
}

// ValidateRequiredInputs checks every binding marked Required against the
// declared producers and reports all unsatisfied bindings at once, each
// naming the module, message type and channel that need a producer.
func (m *Messenger) ValidateRequiredInputs() error {
	var errs []error
	for _, b := range m.Bindings() {
		if !b.Required {
			continue
		}
		if m.HasProducerFor(b.MessageType, b.Channel) {
			continue
		}
		errs = append(errs, errspkg.MissingInputError{
			Module:      b.Receiver,
			MessageType: string(b.MessageType),
			Channel:     b.Channel,
		})
	}
	return errors.Join(errs...)
}

// Unregister removes every delegate and producer declaration owned by
// receiver and returns how many entries went away. It is a setup-phase
// operation: the run-phase registry is immutable.
func (m *Messenger) Unregister(receiver Module) (int, error) {
	if receiver == nil {
		return 0, errspkg.ErrReceiverRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return 0, errspkg.ErrMessengerRunning
	}

	removed := 0
	for msgType, byChannel := range m.delegates {
		for channel, list := range byChannel {
			kept := list[:0]
			for _, d := range list {
				if d.receiver == receiver {
					removed++
					continue
				}
				kept = append(kept, d)
			}
			if len(kept) == 0 {
				delete(byChannel, channel)
			} else {
				byChannel[channel] = kept
			}
		}
		if len(byChannel) == 0 {
			delete(m.delegates, msgType)
		}
	}

	keptProducers := m.producers[:0]
	for _, decl := range m.producers {
		if decl.module == receiver {
			removed++
			continue
		}
		keptProducers = append(keptProducers, decl)
	}
	if len(keptProducers) != len(m.producers) {
		m.producers = keptProducers
		m.rebuildFeedersLocked()
	}

	if removed > 0 {
		m.log.Debug("receiver unregistered", loggingpkg.LogFields{
			"receiver": receiver.Name(),
			"removed":  removed,
		})
	}
	return removed, nil
}

func (m *Messenger) rebuildFeedersLocked() {
	m.feeders = make(map[MessageType]map[string]int)
	for _, decl := range m.producers {
		byChannel, ok := m.feeders[decl.info.MessageType]
		if !ok {
			byChannel = make(map[string]int)
			m.feeders[decl.info.MessageType] = byChannel
		}
		byChannel[decl.info.Channel]++
	}
}

func (m *Messenger) delegateCountLocked() int {
	count := 0
	for _, byChannel := range m.delegates {
		for _, list := range byChannel {
			count += len(list)
		}
	}
	return count
}

// Dispatch delivers msg to every delegate registered for its dynamic type on
// the given channel and, when channel is not the wildcard, on the wildcard
// channel as well. Delivery is synchronous on the caller's goroutine:
// named-channel delegates first, then wildcard delegates, each set in
// registration order, each delegate exactly once. The first delegate error
// stops delivery and comes back wrapped with the receiver's name. A dispatch
// that matches nothing is not an error; it is counted and logged at debug.
func (m *Messenger) Dispatch(ctx context.Context, msg Message, channel string) error {
	if msg == nil {
		return errspkg.ErrMessageRequired
	}
	if !m.running.Load() {
		return errspkg.ErrMessengerNotRunning
	}

	msgType := MessageTypeOf(msg)
	dctx := DispatchContext{
		MessageID:   ids.CreateULID(),
		MessageType: msgType,
		Channel:     channel,
		Detector:    msg.Detector(),
		StartedAt:   time.Now(),
	}

	if m.tracing {
		var span oteltrace.Span
		ctx, span = m.tracer.Start(ctx, "DispatchMessage")
		defer span.End()
		span.SetAttributes(
			attribute.String("message.id", dctx.MessageID),
			attribute.String("message.type", string(msgType)),
			attribute.String("message.channel", channel),
		)
	}

	if m.hooks.OnDispatch != nil {
		m.hooks.OnDispatch(dctx)
	}

	// The registry is sealed; reading it without the lock is safe.
	byChannel := m.delegates[msgType]
	named := byChannel[channel]
	var wildcard []*delegate
	if channel != WildcardChannel {
		wildcard = byChannel[WildcardChannel]
	}

	if len(named)+len(wildcard) == 0 {
		dctx.Duration = time.Since(dctx.StartedAt)
		if m.stats != nil {
			m.stats.recordDropped(msgType, channel)
		}
		if m.hooks.OnDropped != nil {
			m.hooks.OnDropped(dctx)
		}
		m.log.Debug("message has no receivers", loggingpkg.LogFields{
			"message_id":   dctx.MessageID,
			"message_type": string(msgType),
			"channel":      channel,
		})
		return nil
	}

	for _, d := range named {
		if err := m.deliver(ctx, d, msg, &dctx); err != nil {
			return err
		}
	}
	for _, d := range wildcard {
		if err := m.deliver(ctx, d, msg, &dctx); err != nil {
			return err
		}
	}

	dctx.Duration = time.Since(dctx.StartedAt)
	if m.stats != nil {
		m.stats.recordDispatch(msgType, channel, dctx.Delivered, dctx.Duration)
	}
	if m.hooks.OnDelivered != nil {
		m.hooks.OnDelivered(dctx)
	}
	return nil
}

func (m *Messenger) deliver(ctx context.Context, d *delegate, msg Message, dctx *DispatchContext) error {
	if err := d.apply(ctx, msg); err != nil {
		dctx.Duration = time.Since(dctx.StartedAt)
		wrapped := fmt.Errorf("simflow: receiver %q failed on %s: %w", d.receiver.Name(), d.msgType, err)
		if m.stats != nil {
			m.stats.recordFailure(dctx.MessageType, dctx.Channel)
		}
		if m.hooks.OnError != nil {
			m.hooks.OnError(*dctx, wrapped)
		}
		return wrapped
	}

	dctx.Delivered++
	if m.stats != nil {
		m.stats.recordDelivery(dctx.MessageType, dctx.Channel, d.kind)
	}
	return nil
}
