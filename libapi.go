package simflow

import (
	"context"

	runtimepkg "github.com/drblury/simflow/internal/runtime"
	archivepkg "github.com/drblury/simflow/internal/runtime/archive"
	configpkg "github.com/drblury/simflow/internal/runtime/config"
	errspkg "github.com/drblury/simflow/internal/runtime/errors"
	geometrypkg "github.com/drblury/simflow/internal/runtime/geometry"
	idspkg "github.com/drblury/simflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/simflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/simflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/simflow/internal/runtime/metadata"
	relaypkg "github.com/drblury/simflow/internal/runtime/relay"
)

type (
	Config  = configpkg.Config
	Section = configpkg.Section

	Messenger       = runtimepkg.Messenger
	MessengerOption = runtimepkg.MessengerOption
	Message         = runtimepkg.Message
	MessageType     = runtimepkg.MessageType
	BaseMessage     = runtimepkg.BaseMessage
	Module          = runtimepkg.Module
	BaseModule      = runtimepkg.BaseModule
	BindOption      = runtimepkg.BindOption
	BindingInfo     = runtimepkg.BindingInfo
	ProducerInfo    = runtimepkg.ProducerInfo
	DelegateKind    = runtimepkg.DelegateKind

	Pipeline             = runtimepkg.Pipeline
	PipelineDependencies = runtimepkg.PipelineDependencies
	ModuleInfo           = runtimepkg.ModuleInfo
	ModuleStats          = runtimepkg.ModuleStats

	// Dispatch lifecycle hooks
	DispatchContext = runtimepkg.DispatchContext
	DispatchHooks   = runtimepkg.DispatchHooks

	// Dispatch metrics
	DispatchStats         = runtimepkg.DispatchStats
	MessageTypeMetrics    = runtimepkg.MessageTypeMetrics
	DispatchStatsSnapshot = runtimepkg.DispatchStatsSnapshot

	// Simulated setup
	Detector        = geometrypkg.Detector
	Vector          = geometrypkg.Vector
	GeometryManager = geometrypkg.Manager

	// Stock bridge modules
	Relay               = relaypkg.Relay
	ArchiveWriter       = archivepkg.Writer
	ArchiveWriterConfig = archivepkg.WriterConfig

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError  = errspkg.ConfigValidationError
	MissingInputError      = errspkg.MissingInputError
	MissingKeyError        = errspkg.MissingKeyError
	InvalidValueError      = errspkg.InvalidValueError
	DuplicateDetectorError = errspkg.DuplicateDetectorError
	DuplicateModuleError   = errspkg.DuplicateModuleError
)

var (
	NewMessenger = runtimepkg.NewMessenger
	NewPipeline  = runtimepkg.NewPipeline

	ParseEnv       = configpkg.ParseEnv
	ValidateConfig = configpkg.ValidateConfig
	LoadSections   = configpkg.LoadSections
	NewSection     = configpkg.NewSection

	NewBaseModule  = runtimepkg.NewBaseModule
	NewBaseMessage = runtimepkg.NewBaseMessage
	MessageTypeOf  = runtimepkg.MessageTypeOf

	// Bind options
	WithChannel = runtimepkg.WithChannel
	Required    = runtimepkg.Required

	// Messenger options
	WithDispatchHooks = runtimepkg.WithDispatchHooks
	WithDispatchStats = runtimepkg.WithDispatchStats
	WithTracing       = runtimepkg.WithTracing

	// Dispatch lifecycle hooks
	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks

	// Dispatch metrics
	NewDispatchStats = runtimepkg.NewDispatchStats

	// Simulated setup
	NewGeometryManager = geometrypkg.NewManager

	// Stock bridge modules
	NewRelay           = relaypkg.New
	NewInProcessPubSub = relaypkg.NewInProcessPubSub
	NewArchiveWriter   = archivepkg.NewWriter

	Marshal       = jsoncodec.Marshal
	MarshalString = jsoncodec.MarshalString
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrMessengerRequired   = errspkg.ErrMessengerRequired
	ErrReceiverRequired    = errspkg.ErrReceiverRequired
	ErrHandlerRequired     = errspkg.ErrHandlerRequired
	ErrBindTargetRequired  = errspkg.ErrBindTargetRequired
	ErrMessageRequired     = errspkg.ErrMessageRequired
	ErrMessengerRunning    = errspkg.ErrMessengerRunning
	ErrMessengerNotRunning = errspkg.ErrMessengerNotRunning
	ErrModuleRequired      = errspkg.ErrModuleRequired
	ErrModuleNameEmpty     = errspkg.ErrModuleNameEmpty
	ErrDetectorRequired    = errspkg.ErrDetectorRequired
	ErrDetectorNameEmpty   = errspkg.ErrDetectorNameEmpty
	ErrPublisherRequired   = errspkg.ErrPublisherRequired
	ErrTopicRequired       = errspkg.ErrTopicRequired
	ErrStorePathRequired   = errspkg.ErrStorePathRequired
	ErrConfigRequired      = errspkg.ErrConfigRequired

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewNopServiceLogger       = loggingpkg.NewNopServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// WildcardChannel is the catch-all channel every binding defaults to.
const WildcardChannel = runtimepkg.WildcardChannel

// Delegate kinds reported by Messenger.Bindings.
const (
	KindListener   = runtimepkg.KindListener
	KindSingleBind = runtimepkg.KindSingleBind
	KindMultiBind  = runtimepkg.KindMultiBind
	KindProducer   = runtimepkg.KindProducer
)

// Metadata keys stamped on relayed messages.
const (
	MetadataKeyMessageType  = relaypkg.MetadataKeyMessageType
	MetadataKeyChannel      = relaypkg.MetadataKeyChannel
	MetadataKeyDetector     = relaypkg.MetadataKeyDetector
	MetadataKeyDispatchedAt = relaypkg.MetadataKeyDispatchedAt
)

func RegisterListener[M Message](m *Messenger, receiver Module, handler func(context.Context, M) error, opts ...BindOption) error {
	return runtimepkg.RegisterListener(m, receiver, handler, opts...)
}

func BindSingle[M Message](m *Messenger, receiver Module, slot *M, opts ...BindOption) error {
	return runtimepkg.BindSingle(m, receiver, slot, opts...)
}

func BindMulti[M Message](m *Messenger, receiver Module, slot *[]M, opts ...BindOption) error {
	return runtimepkg.BindMulti(m, receiver, slot, opts...)
}

func DeclareProducer[M Message](m *Messenger, producer Module, opts ...BindOption) error {
	return runtimepkg.DeclareProducer[M](m, producer, opts...)
}

func MessageTypeFor[M Message]() MessageType {
	return runtimepkg.MessageTypeFor[M]()
}

// Forward subscribes a relay to messages of type M; every delivery is
// republished on the relay's Watermill topic.
func Forward[M Message](r *Relay, m *Messenger, opts ...BindOption) error {
	return relaypkg.Forward[M](r, m, opts...)
}

// Record subscribes an archive writer to messages of type M; deliveries are
// persisted when the writer's Run flushes the event.
func Record[M Message](w *ArchiveWriter, m *Messenger, opts ...BindOption) error {
	return archivepkg.Record[M](w, m, opts...)
}
