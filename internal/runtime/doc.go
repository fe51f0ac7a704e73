/*
Package runtime provides the core message dispatch infrastructure for simflow.

# Architecture Overview

The runtime package implements a synchronous, type-keyed publish/subscribe
registry for simulation pipelines. Receivers register typed delegates during
the setup phase; Start seals the registry; every dispatch after that is a
read-only walk delivering on the caller's goroutine.

# Package Structure

The runtime package is organized into the following components:

## Messenger (messenger.go, delegates.go, registration.go)

The Messenger struct is the central registry that wires together:
  - Delegate registry keyed by message type and channel
  - Producer declarations for wiring validation
  - Dispatch hooks, stats collection and optional tracing

Registration files provide the typed entry points:
  - RegisterListener: a handler invoked per delivery
  - BindSingle: a message slot overwritten per delivery
  - BindMulti: a message slice appended per delivery
  - DeclareProducer: a declared dispatch opportunity

## Pipeline (pipeline.go)

The Pipeline drives a full simulation run: modules are added in order,
required inputs are validated before the first event, and every event runs
each module's Run between one Init and one Finalize pass. Metrics HTTP
servers are started alongside when enabled.

## Stats & Monitoring (stats.go, models.go, resources.go, hooks.go)

Dispatch and module performance collection:
  - DispatchStats: Prometheus counters and histograms per message type
  - ModuleStats: latency percentiles (p50, p95, p99), throughput,
    resource usage sampling
  - DispatchHooks: OnDispatch, OnDelivered, OnDropped, OnError callbacks

# Sub-packages

  - archive/: SQLite archiving of dispatched messages
  - config/: Run configuration and module parameter sections
  - errors/: Sentinel errors and error types
  - geometry/: Registry of the simulated detector setup
  - ids/: ULID generation for dispatch IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
  - metadata/: Message metadata utilities
  - relay/: Bridge from the messenger onto Watermill transports

# Usage Example

	cfg := &config.Config{
		LogLevel:       "info",
		MetricsEnabled: true,
		MetricsPort:    9090,
	}

	pipeline, err := runtime.NewPipeline(cfg, logger, runtime.PipelineDependencies{})
	if err != nil {
		return err
	}

	pipeline.AddModule(deposition)
	pipeline.AddModule(clustering)

	err = pipeline.Run(ctx, 1000)
*/
package runtime
