// Package relay bridges the synchronous messenger onto asynchronous
// Watermill transports. A Relay subscribes to selected message types and
// republishes every delivery as a JSON-encoded Watermill message, so
// external consumers can tail a simulation without joining the event loop.
package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	runtimepkg "github.com/drblury/simflow/internal/runtime"
	errspkg "github.com/drblury/simflow/internal/runtime/errors"
	idspkg "github.com/drblury/simflow/internal/runtime/ids"
	"github.com/drblury/simflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/simflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/simflow/internal/runtime/metadata"
)

// Metadata keys stamped on every forwarded message.
const (
	MetadataKeyMessageType  = "message_type"
	MetadataKeyChannel      = "channel"
	MetadataKeyDetector     = "detector"
	MetadataKeyDispatchedAt = "dispatched_at"
)

// Relay is a module that forwards dispatched messages to a Watermill
// publisher. Forward attaches it to a messenger per message type; the
// publish happens synchronously inside the dispatch, so a broker error
// propagates to the producer like any other delegate failure.
type Relay struct {
	runtimepkg.BaseModule

	publisher message.Publisher
	topic     string
	log       loggingpkg.ServiceLogger

	forwarded atomic.Uint64
}

// New creates a relay publishing to topic. A nil logger falls back to the
// nop logger.
func New(name string, publisher message.Publisher, topic string, log loggingpkg.ServiceLogger) (*Relay, error) {
	if name == "" {
		return nil, errspkg.ErrModuleNameEmpty
	}
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}
	return &Relay{
		BaseModule: runtimepkg.NewBaseModule(name),
		publisher:  publisher,
		topic:      topic,
		log:        log,
	}, nil
}

// Forward subscribes r to messages of type M on the option channel. The
// metadata channel key records the subscription channel, not the dispatch
// channel: a wildcard subscription stamps the empty string.
func Forward[M runtimepkg.Message](r *Relay, m *runtimepkg.Messenger, opts ...runtimepkg.BindOption) error {
	if r == nil {
		return errspkg.ErrModuleRequired
	}

	msgType := runtimepkg.MessageTypeFor[M]()

	// Only the registry knows the channel once the bind options are
	// applied. The closure reads the variable filled in from the binding
	// snapshot below; registration happens strictly before Start, so
	// dispatches observe the write.
	var channel string
	handler := func(ctx context.Context, payload M) error {
		return r.publish(ctx, msgType, channel, payload)
	}
	if err := runtimepkg.RegisterListener(m, r, handler, opts...); err != nil {
		return err
	}

	bindings := m.Bindings()
	for i := len(bindings) - 1; i >= 0; i-- {
		b := bindings[i]
		if b.Receiver == r.Name() && b.MessageType == msgType {
			channel = b.Channel
			break
		}
	}

	r.log.Debug("relay subscribed", loggingpkg.LogFields{
		"relay":        r.Name(),
		"topic":        r.topic,
		"message_type": string(msgType),
		"channel":      channel,
	})
	return nil
}

func (r *Relay) publish(ctx context.Context, msgType runtimepkg.MessageType, channel string, payload runtimepkg.Message) error {
	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("simflow: relay %q: marshal %s: %w", r.Name(), msgType, err)
	}

	wm := message.NewMessage(idspkg.CreateULID(), body)
	wm.Metadata = metadatapkg.ToWatermill(metadatapkg.New(
		MetadataKeyMessageType, string(msgType),
		MetadataKeyChannel, channel,
		MetadataKeyDetector, payload.Detector(),
		MetadataKeyDispatchedAt, time.Now().UTC().Format(time.RFC3339Nano),
	))
	if ctx != nil {
		wm.SetContext(ctx)
	}

	if err := r.publisher.Publish(r.topic, wm); err != nil {
		return fmt.Errorf("simflow: relay %q: publish %s: %w", r.Name(), msgType, err)
	}

	r.forwarded.Add(1)
	return nil
}

// Forwarded returns how many messages the relay has published so far.
func (r *Relay) Forwarded() uint64 { return r.forwarded.Load() }

// Finalize reports the forwarded total. The publisher stays open; callers
// that own its lifecycle use Close.
func (r *Relay) Finalize() error {
	r.log.Info("relay finished", loggingpkg.LogFields{
		"relay":     r.Name(),
		"topic":     r.topic,
		"forwarded": r.forwarded.Load(),
	})
	return nil
}

// Close closes the underlying publisher.
func (r *Relay) Close() error {
	return r.publisher.Close()
}
