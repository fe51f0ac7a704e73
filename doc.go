// Package simflow is a synchronous, type-keyed messaging framework for
// detector simulation pipelines. Modules exchange typed messages through a
// central Messenger: receivers register listeners or bind message slots per
// payload type during setup, producers declare what they will dispatch, and
// every Dispatch after Start delivers synchronously on the caller's
// goroutine to the named channel first and the wildcard channel second, in
// registration order.
//
// The Messenger has two phases. Setup is where RegisterListener, BindSingle,
// BindMulti and DeclareProducer build the registry; Start seals it exactly
// once, and from then on dispatch walks the registry lock-free. A handler
// error stops the dispatch and propagates, wrapped with the receiver's name,
// back to the producer.
//
// Pipeline drives a full run: modules are added in order, required inputs
// are validated against the declared producers before the first event, and
// each event runs every module's Run in pipeline order between one Init and
// one Finalize pass. Per-module latency, throughput and resource statistics
// are collected the whole way, and a Prometheus /metrics endpoint plus
// per-dispatch OpenTelemetry spans can be switched on through Config.
//
// # Channels
//
// A channel is a plain string tag on a dispatch. Bindings default to the
// wildcard channel, which observes every dispatch of the type; a binding
// made with WithChannel only sees dispatches on that name. Detector-keyed
// simulations use channels to fan the same payload type out per sensor.
//
// # Hooks and stats
//
// WithDispatchHooks installs OnDispatch, OnDelivered, OnDropped and OnError
// callbacks around every dispatch; LoggingHooks, MetricsHooks and
// AlertingHooks are prebuilt sets. WithDispatchStats feeds a DispatchStats
// collector whose counters are also exported through Prometheus.
//
// # Bridging and archiving
//
// Two stock modules connect a run to the outside. The relay republishes
// selected message types onto any Watermill publisher as JSON with
// message_type/channel/detector metadata; the archive writer persists
// dispatched messages into a SQLite file, one transaction per event, for
// offline inspection. Both register through the same bind options as any
// listener, so Required() wiring validation covers them too.
package simflow
