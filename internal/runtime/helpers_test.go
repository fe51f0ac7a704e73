package runtime

import (
	"context"
	"io"
	"log/slog"
	"testing"

	loggingpkg "github.com/drblury/simflow/internal/runtime/logging"
)

func newTestSlogLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(newTestSlogLogger())
}

// hitMessage and clusterMessage are the payload types the messenger tests
// dispatch. Two distinct types keep type-keying honest.
type hitMessage struct {
	BaseMessage
	charge int
}

func newHitMessage(detector string, charge int) *hitMessage {
	return &hitMessage{BaseMessage: NewBaseMessage(detector), charge: charge}
}

type clusterMessage struct {
	BaseMessage
	size int
}

func newClusterMessage(detector string, size int) *clusterMessage {
	return &clusterMessage{BaseMessage: NewBaseMessage(detector), size: size}
}

// stubModule records lifecycle calls; the err fields make any phase fail on
// demand.
type stubModule struct {
	BaseModule
	initCalls     int
	runCalls      int
	finalizeCalls int
	events        []uint64
	initErr       error
	runErr        error
	finalizeErr   error
}

func newStubModule(name string) *stubModule {
	return &stubModule{BaseModule: NewBaseModule(name)}
}

func (m *stubModule) Init(context.Context) error {
	m.initCalls++
	return m.initErr
}

func (m *stubModule) Run(_ context.Context, event uint64) error {
	m.runCalls++
	m.events = append(m.events, event)
	return m.runErr
}

func (m *stubModule) Finalize() error {
	m.finalizeCalls++
	return m.finalizeErr
}

func startedMessenger(t *testing.T, opts ...MessengerOption) *Messenger {
	t.Helper()
	m := NewMessenger(newTestLogger(), opts...)
	if err := m.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}
