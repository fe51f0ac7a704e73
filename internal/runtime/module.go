package runtime

import "context"

// Module is the contract every pipeline stage implements. The messenger uses
// only the identity; the pipeline drives the lifecycle: Init once before the
// first event, Run once per event in pipeline order, Finalize once after the
// last event.
type Module interface {
	// Name returns the stable instance name used in logs, errors and
	// registration queries. Two loaded modules never share a name.
	Name() string
	Init(ctx context.Context) error
	Run(ctx context.Context, event uint64) error
	Finalize() error
}

// BaseModule provides the Module plumbing for embedding: it stores the
// instance name and supplies no-op lifecycle methods, so a module only
// implements the hooks it needs.
type BaseModule struct {
	name string
}

// NewBaseModule creates the embeddable base for a named module instance.
func NewBaseModule(name string) BaseModule {
	return BaseModule{name: name}
}

// Name returns the instance name given at construction.
func (m BaseModule) Name() string { return m.name }

// Init is a no-op; override it for setup work that needs the run context.
func (m BaseModule) Init(context.Context) error { return nil }

// Run is a no-op; producer and consumer modules override it.
func (m BaseModule) Run(context.Context, uint64) error { return nil }

// Finalize is a no-op; override it to flush buffers or report totals.
func (m BaseModule) Finalize() error { return nil }
