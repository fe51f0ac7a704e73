package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	runtimepkg "github.com/drblury/simflow/internal/runtime"
	errspkg "github.com/drblury/simflow/internal/runtime/errors"
	"github.com/drblury/simflow/internal/runtime/jsoncodec"
)

type trackMessage struct {
	runtimepkg.BaseMessage
	Charge int `json:"charge"`
}

func newTrackMessage(detector string, charge int) *trackMessage {
	return &trackMessage{BaseMessage: runtimepkg.NewBaseMessage(detector), Charge: charge}
}

type relayTestContextKey struct{}

var testCtxKey = relayTestContextKey{}

func TestNewValidations(t *testing.T) {
	if _, err := New("", &recordingPublisher{}, "hits", nil); !errors.Is(err, errspkg.ErrModuleNameEmpty) {
		t.Fatalf("expected module name error, got %v", err)
	}
	if _, err := New("relay", nil, "hits", nil); !errors.Is(err, errspkg.ErrPublisherRequired) {
		t.Fatalf("expected publisher required error, got %v", err)
	}
	if _, err := New("relay", &recordingPublisher{}, "", nil); !errors.Is(err, errspkg.ErrTopicRequired) {
		t.Fatalf("expected topic required error, got %v", err)
	}

	r, err := New("relay", &recordingPublisher{}, "hits", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name() != "relay" {
		t.Fatalf("expected module name to be set, got %q", r.Name())
	}
}

func TestForwardValidations(t *testing.T) {
	m := runtimepkg.NewMessenger(nil)

	if err := Forward[*trackMessage](nil, m); !errors.Is(err, errspkg.ErrModuleRequired) {
		t.Fatalf("expected module required error, got %v", err)
	}

	r, err := New("relay", &recordingPublisher{}, "hits", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Forward[*trackMessage](r, nil); !errors.Is(err, errspkg.ErrMessengerRequired) {
		t.Fatalf("expected messenger required error, got %v", err)
	}
}

func TestForwardPublishesDispatchedMessages(t *testing.T) {
	m := runtimepkg.NewMessenger(nil)
	recorder := &recordingPublisher{}

	r, err := New("relay", recorder, "tracks", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Forward[*trackMessage](r, m, runtimepkg.WithChannel("vertex")); err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	ctx := context.WithValue(context.Background(), testCtxKey, "ctx")
	if err := m.Dispatch(ctx, newTrackMessage("det1", 42), "vertex"); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}

	if len(recorder.topics) != 1 || recorder.topics[0] != "tracks" {
		t.Fatalf("expected topic to be recorded, got %#v", recorder.topics)
	}

	wm := recorder.messages[0]
	if len(wm.UUID) != 26 {
		t.Fatalf("expected ULID message UUID, got %q", wm.UUID)
	}
	if wm.Context().Value(testCtxKey) != "ctx" {
		t.Fatal("expected dispatch context to be attached to message")
	}
	if got := wm.Metadata[MetadataKeyMessageType]; !strings.Contains(got, "trackMessage") {
		t.Fatalf("expected message type metadata, got %q", got)
	}
	if got := wm.Metadata[MetadataKeyChannel]; got != "vertex" {
		t.Fatalf("expected channel metadata %q, got %q", "vertex", got)
	}
	if got := wm.Metadata[MetadataKeyDetector]; got != "det1" {
		t.Fatalf("expected detector metadata %q, got %q", "det1", got)
	}
	if wm.Metadata[MetadataKeyDispatchedAt] == "" {
		t.Fatal("expected dispatched_at metadata to be set")
	}

	var decoded trackMessage
	if err := jsoncodec.Unmarshal(wm.Payload, &decoded); err != nil {
		t.Fatalf("unexpected payload decode error: %v", err)
	}
	if decoded.Charge != 42 {
		t.Fatalf("expected charge 42 in payload, got %d", decoded.Charge)
	}

	if r.Forwarded() != 1 {
		t.Fatalf("expected forwarded count 1, got %d", r.Forwarded())
	}
}

func TestForwardWildcardStampsEmptyChannel(t *testing.T) {
	m := runtimepkg.NewMessenger(nil)
	recorder := &recordingPublisher{}

	r, err := New("relay", recorder, "tracks", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Forward[*trackMessage](r, m); err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	if err := m.Dispatch(context.Background(), newTrackMessage("det2", 7), "anything"); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}

	if len(recorder.messages) != 1 {
		t.Fatalf("expected one forwarded message, got %d", len(recorder.messages))
	}
	if got := recorder.messages[0].Metadata[MetadataKeyChannel]; got != "" {
		t.Fatalf("expected empty channel metadata for wildcard subscription, got %q", got)
	}
}

func TestForwardPublishErrorPropagatesThroughDispatch(t *testing.T) {
	m := runtimepkg.NewMessenger(nil)
	pubErr := errors.New("broker unavailable")
	recorder := &recordingPublisher{err: pubErr}

	r, err := New("relay", recorder, "tracks", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Forward[*trackMessage](r, m); err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	err = m.Dispatch(context.Background(), newTrackMessage("det1", 1), "")
	if !errors.Is(err, pubErr) {
		t.Fatalf("expected publish error to propagate, got %v", err)
	}
	if !strings.Contains(err.Error(), `receiver "relay"`) {
		t.Fatalf("expected error to name the relay, got %q", err.Error())
	}
	if r.Forwarded() != 0 {
		t.Fatalf("expected no forwarded messages, got %d", r.Forwarded())
	}
}

func TestForwardMultipleTypesKeepSeparateChannels(t *testing.T) {
	type vertexMessage struct {
		runtimepkg.BaseMessage
		Size int `json:"size"`
	}

	m := runtimepkg.NewMessenger(nil)
	recorder := &recordingPublisher{}

	r, err := New("relay", recorder, "events", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Forward[*trackMessage](r, m, runtimepkg.WithChannel("tracks")); err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}
	if err := Forward[*vertexMessage](r, m, runtimepkg.WithChannel("vertices")); err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	if err := m.Dispatch(context.Background(), newTrackMessage("det1", 3), "tracks"); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	if err := m.Dispatch(context.Background(), &vertexMessage{Size: 2}, "vertices"); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}

	if len(recorder.messages) != 2 {
		t.Fatalf("expected two forwarded messages, got %d", len(recorder.messages))
	}
	if got := recorder.messages[0].Metadata[MetadataKeyChannel]; got != "tracks" {
		t.Fatalf("expected first channel %q, got %q", "tracks", got)
	}
	if got := recorder.messages[1].Metadata[MetadataKeyChannel]; got != "vertices" {
		t.Fatalf("expected second channel %q, got %q", "vertices", got)
	}
}

func TestInProcessPubSubDeliversForwardedMessages(t *testing.T) {
	pubSub := NewInProcessPubSub(nil)
	defer pubSub.Close()

	// Subscribe before the first dispatch; the gochannel transport does
	// not replay.
	msgs, err := pubSub.Subscribe(context.Background(), "hits")
	if err != nil {
		t.Fatalf("unexpected subscribe error: %v", err)
	}

	m := runtimepkg.NewMessenger(nil)
	r, err := New("relay", pubSub, "hits", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Forward[*trackMessage](r, m, runtimepkg.WithChannel("dut")); err != nil {
		t.Fatalf("unexpected forward error: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	if err := m.Dispatch(context.Background(), newTrackMessage("det1", 9), "dut"); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}

	select {
	case wm := <-msgs:
		wm.Ack()
		if got := wm.Metadata[MetadataKeyDetector]; got != "det1" {
			t.Fatalf("expected detector metadata %q, got %q", "det1", got)
		}
		var decoded trackMessage
		if err := jsoncodec.Unmarshal(wm.Payload, &decoded); err != nil {
			t.Fatalf("unexpected payload decode error: %v", err)
		}
		if decoded.Charge != 9 {
			t.Fatalf("expected charge 9 in payload, got %d", decoded.Charge)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forwarded message")
	}
}

func TestRelayFinalizeAndClose(t *testing.T) {
	recorder := &recordingPublisher{}
	r, err := New("relay", recorder, "tracks", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Finalize(); err != nil {
		t.Fatalf("unexpected finalize error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if !recorder.closed {
		t.Fatal("expected publisher to be closed")
	}
}

type recordingPublisher struct {
	topics   []string
	messages []*message.Message
	err      error
	closed   bool
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, messages...)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}
