package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	configpkg "github.com/drblury/simflow/internal/runtime/config"
	errspkg "github.com/drblury/simflow/internal/runtime/errors"
	geometrypkg "github.com/drblury/simflow/internal/runtime/geometry"
	loggingpkg "github.com/drblury/simflow/internal/runtime/logging"
)

// PipelineDependencies holds the optional collaborators that the Pipeline
// can use. Leave fields nil to get defaults.
type PipelineDependencies struct {
	Geometry *geometrypkg.Manager
	Stats    *DispatchStats
	Hooks    DispatchHooks
	// MessengerOptions are appended after the options derived from config.
	MessengerOptions []MessengerOption
}

// Pipeline wires the messenger, the geometry manager and an ordered module
// list into one simulation run. Modules are added during setup; Run drives
// the one-way Init/event-loop/Finalize epoch.
type Pipeline struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	messenger *Messenger
	geometry  *geometrypkg.Manager

	modules     []*moduleEntry
	moduleIndex map[string]int
	modulesMu   sync.RWMutex

	stats           *DispatchStats
	resourceTracker *resourceTracker

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

type moduleEntry struct {
	module Module
	stats  *ModuleStats
}

// NewPipeline constructs a Pipeline for the supplied configuration. Add
// modules and register their bindings on the returned Pipeline before
// calling Run.
func NewPipeline(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps PipelineDependencies) (*Pipeline, error) {
	if err := configpkg.ValidateConfig(conf); err != nil {
		return nil, err
	}
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}

	log.Info("Creating simulation pipeline", loggingpkg.LogFields{
		"metrics_enabled": conf.MetricsEnabled,
		"tracing_enabled": conf.TracingEnabled,
	})

	geo := deps.Geometry
	if geo == nil {
		geo = geometrypkg.NewManager()
	}

	stats := deps.Stats
	if stats == nil && conf.MetricsEnabled {
		stats = NewDispatchStats(nil)
	}
	if stats != nil {
		if err := stats.Register(); err != nil {
			return nil, err
		}
	}

	opts := []MessengerOption{WithDispatchHooks(deps.Hooks)}
	if stats != nil {
		opts = append(opts, WithDispatchStats(stats))
	}
	if conf.TracingEnabled {
		opts = append(opts, WithTracing())
	}
	opts = append(opts, deps.MessengerOptions...)

	p := &Pipeline{
		Conf:            conf,
		Logger:          log,
		messenger:       NewMessenger(log, opts...),
		geometry:        geo,
		moduleIndex:     make(map[string]int),
		stats:           stats,
		resourceTracker: newResourceTracker(),
	}

	if conf.MetricsEnabled {
		p.RegisterHTTPHandler(conf.MetricsPort, "/metrics", promhttp.Handler())
	}
	if conf.IntrospectEnabled {
		p.registerIntrospectionHandlers()
	}

	return p, nil
}

// Messenger returns the pipeline's message registry. Modules register their
// bindings on it during construction.
func (p *Pipeline) Messenger() *Messenger { return p.messenger }

// Geometry returns the shared detector registry.
func (p *Pipeline) Geometry() *geometrypkg.Manager { return p.geometry }

// AddModule appends a module to the execution order. Names must be unique;
// adding is a setup-phase operation.
func (p *Pipeline) AddModule(mod Module) error {
	if mod == nil {
		return errspkg.ErrModuleRequired
	}
	if p.messenger.Running() {
		return errspkg.ErrMessengerRunning
	}

	p.modulesMu.Lock()
	defer p.modulesMu.Unlock()

	if _, ok := p.moduleIndex[mod.Name()]; ok {
		return errspkg.DuplicateModuleError{Name: mod.Name()}
	}

	entry := &moduleEntry{
		module: mod,
		stats:  newModuleStats(mod.Name(), p.resourceTracker),
	}
	p.moduleIndex[mod.Name()] = len(p.modules)
	p.modules = append(p.modules, entry)

	p.Logger.Debug("module added", loggingpkg.LogFields{
		"module":   mod.Name(),
		"position": len(p.modules) - 1,
	})
	return nil
}

// Modules returns the module list with statistics, in execution order.
func (p *Pipeline) Modules() []ModuleInfo {
	p.modulesMu.RLock()
	defer p.modulesMu.RUnlock()

	out := make([]ModuleInfo, 0, len(p.modules))
	for _, entry := range p.modules {
		out = append(out, ModuleInfo{Name: entry.module.Name(), Stats: entry.stats})
	}
	return out
}

// ModuleStats returns the run statistics for a named module, nil when the
// module is not part of this pipeline.
func (p *Pipeline) ModuleStats(name string) *ModuleStats {
	p.modulesMu.RLock()
	defer p.modulesMu.RUnlock()

	if idx, ok := p.moduleIndex[name]; ok {
		return p.modules[idx].stats
	}
	return nil
}

// Run executes the pipeline: wiring validation, messenger seal, module Init
// in order, the event loop, module Finalize. The transition into the event
// loop is one-way; a pipeline runs at most once. The first Init or Run error
// aborts the epoch; Finalize is still attempted for every module once the
// event loop has started, so buffers flush and totals get reported.
func (p *Pipeline) Run(ctx context.Context, events uint64) error {
	p.modulesMu.RLock()
	mods := make([]*moduleEntry, len(p.modules))
	copy(mods, p.modules)
	p.modulesMu.RUnlock()

	if err := p.messenger.ValidateRequiredInputs(); err != nil {
		return err
	}
	p.logUnfedOptionalInputs()

	if err := p.messenger.Start(); err != nil {
		return err
	}
	p.startHTTPServers()

	started := time.Now()
	p.Logger.Info("pipeline starting", loggingpkg.LogFields{
		"modules": len(mods),
		"events":  events,
	})

	for _, entry := range mods {
		if err := entry.module.Init(ctx); err != nil {
			return fmt.Errorf("simflow: module %q init: %w", entry.module.Name(), err)
		}
	}

	var runErr error
loop:
	for event := uint64(1); event <= events; event++ {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("simflow: event loop interrupted after %d events: %w", event-1, err)
			break
		}
		for _, entry := range mods {
			start := time.Now()
			err := entry.module.Run(ctx, event)
			entry.stats.recordEvent(time.Since(start), err)
			if err != nil {
				runErr = fmt.Errorf("simflow: module %q event %d: %w", entry.module.Name(), event, err)
				break loop
			}
		}
	}

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for _, entry := range mods {
		if err := entry.module.Finalize(); err != nil {
			errs = append(errs, fmt.Errorf("simflow: module %q finalize: %w", entry.module.Name(), err))
		}
	}

	fields := loggingpkg.LogFields{
		"events":      events,
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if p.stats != nil {
		snapshot := p.stats.GetSnapshot()
		fields["dispatched"] = snapshot.TotalDispatched
		fields["delivered"] = snapshot.TotalDelivered
		fields["dropped"] = snapshot.TotalDropped
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		p.Logger.Error("pipeline finished with errors", err, fields)
		return err
	}
	p.Logger.Info("pipeline finished", fields)
	return nil
}

// logUnfedOptionalInputs reports bindings that will never see a message.
// Unlike required inputs this is not fatal; a module may be able to work
// without them.
func (p *Pipeline) logUnfedOptionalInputs() {
	for _, b := range p.messenger.Bindings() {
		if b.Required || p.messenger.HasProducerFor(b.MessageType, b.Channel) {
			continue
		}
		p.Logger.Info("optional input has no producer", loggingpkg.LogFields{
			"module":       b.Receiver,
			"message_type": string(b.MessageType),
			"channel":      b.Channel,
		})
	}
}

// RegisterHTTPHandler mounts a handler on the pipeline's HTTP server for the
// given port. Servers start when Run begins.
func (p *Pipeline) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	p.httpServersMu.Lock()
	defer p.httpServersMu.Unlock()

	if p.httpServers == nil {
		p.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := p.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		p.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (p *Pipeline) startHTTPServers() {
	p.httpServersMu.Lock()
	defer p.httpServersMu.Unlock()

	for port, mux := range p.httpServers {
		addr := fmt.Sprintf(":%d", port)
		p.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				p.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
