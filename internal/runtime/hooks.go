package runtime

import (
	"time"

	loggingpkg "github.com/drblury/simflow/internal/runtime/logging"
)

// DispatchContext provides information about one dispatch to hooks.
type DispatchContext struct {
	// MessageID is the ULID stamped on this dispatch.
	MessageID string
	// MessageType is the registry key of the dispatched payload.
	MessageType MessageType
	// Channel is the channel the producer dispatched on.
	Channel string
	// Detector is the payload's originating-detector tag.
	Detector string
	// StartedAt is when the dispatch began.
	StartedAt time.Time
	// Duration is how long delivery took (only set in OnDelivered,
	// OnDropped and OnError).
	Duration time.Duration
	// Delivered is the number of delegates that have completed so far.
	Delivered int
}

// DispatchHooks defines callbacks for dispatch lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type DispatchHooks struct {
	// OnDispatch is called before any delegate runs.
	OnDispatch func(ctx DispatchContext)

	// OnDelivered is called when every matching delegate has completed.
	// Duration and Delivered are set.
	OnDelivered func(ctx DispatchContext)

	// OnDropped is called when a dispatch matches no delegate at all.
	OnDropped func(ctx DispatchContext)

	// OnError is called when a delegate fails; delivery stops there and the
	// error propagates to the producer.
	OnError func(ctx DispatchContext, err error)
}

// Merge combines two DispatchHooks, creating a new DispatchHooks that calls
// both. The hooks from 'other' are called after the hooks from 'h'.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnDispatch:  chainContextHooks(h.OnDispatch, other.OnDispatch),
		OnDelivered: chainContextHooks(h.OnDelivered, other.OnDelivered),
		OnDropped:   chainContextHooks(h.OnDropped, other.OnDropped),
		OnError:     chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainContextHooks(a, b func(DispatchContext)) func(DispatchContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(DispatchContext, error)) func(DispatchContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx DispatchContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// LoggingHooks returns pre-built hooks that log dispatch lifecycle events.
// Dispatches are per-event hot-path work, so successes log at debug and only
// failures log at error.
func LoggingHooks(log loggingpkg.ServiceLogger) DispatchHooks {
	return DispatchHooks{
		OnDelivered: func(ctx DispatchContext) {
			log.Debug("message delivered", loggingpkg.LogFields{
				"message_id":   ctx.MessageID,
				"message_type": string(ctx.MessageType),
				"channel":      ctx.Channel,
				"delivered":    ctx.Delivered,
				"duration_us":  ctx.Duration.Microseconds(),
			})
		},
		OnDropped: func(ctx DispatchContext) {
			log.Debug("message dropped", loggingpkg.LogFields{
				"message_id":   ctx.MessageID,
				"message_type": string(ctx.MessageType),
				"channel":      ctx.Channel,
			})
		},
		OnError: func(ctx DispatchContext, err error) {
			log.Error("dispatch failed", err, loggingpkg.LogFields{
				"message_id":   ctx.MessageID,
				"message_type": string(ctx.MessageType),
				"channel":      ctx.Channel,
				"delivered":    ctx.Delivered,
				"duration_us":  ctx.Duration.Microseconds(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that feed external dispatch counters.
func MetricsHooks(onDispatch, onDelivered, onDropped func(messageType, channel string)) DispatchHooks {
	return DispatchHooks{
		OnDispatch: func(ctx DispatchContext) {
			if onDispatch != nil {
				onDispatch(string(ctx.MessageType), ctx.Channel)
			}
		},
		OnDelivered: func(ctx DispatchContext) {
			if onDelivered != nil {
				onDelivered(string(ctx.MessageType), ctx.Channel)
			}
		},
		OnDropped: func(ctx DispatchContext) {
			if onDropped != nil {
				onDropped(string(ctx.MessageType), ctx.Channel)
			}
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on dispatch
// failures.
func AlertingHooks(alertFunc func(ctx DispatchContext, err error)) DispatchHooks {
	return DispatchHooks{
		OnError: alertFunc,
	}
}
