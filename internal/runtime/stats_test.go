package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchStats_RecordDispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)
	require.NoError(t, s.Register())

	s.recordDispatch("hits", WildcardChannel, 2, 5*time.Microsecond)
	s.recordDispatch("hits", WildcardChannel, 4, 10*time.Microsecond)

	metrics := s.GetTypeMetrics("hits")
	require.NotNil(t, metrics)
	assert.Equal(t, uint64(2), metrics.Dispatched)
	assert.Equal(t, 3.0, metrics.AvgFanout) // (2+4)/2
	assert.False(t, metrics.LastDispatchAt.IsZero())
}

func TestDispatchStats_RecordDelivery(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)
	require.NoError(t, s.Register())

	s.recordDelivery("hits", WildcardChannel, KindListener)
	s.recordDelivery("hits", "calibrated", KindSingleBind)

	metrics := s.GetTypeMetrics("hits")
	require.NotNil(t, metrics)
	assert.Equal(t, uint64(2), metrics.Delivered)
}

func TestDispatchStats_RecordDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)
	require.NoError(t, s.Register())

	s.recordDropped("clusters", WildcardChannel)

	metrics := s.GetTypeMetrics("clusters")
	require.NotNil(t, metrics)
	assert.Equal(t, uint64(1), metrics.Dropped)
	assert.Equal(t, uint64(0), metrics.Dispatched)
}

func TestDispatchStats_RecordFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)
	require.NoError(t, s.Register())

	s.recordFailure("hits", "calibrated")

	metrics := s.GetTypeMetrics("hits")
	require.NotNil(t, metrics)
	assert.Equal(t, uint64(1), metrics.Failed)
}

func TestDispatchStats_SetDelegateCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)
	require.NoError(t, s.Register())

	s.setDelegateCount(7)

	snapshot := s.GetSnapshot()
	assert.Equal(t, 7, snapshot.DelegateCount)
}

func TestDispatchStats_GetSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)
	require.NoError(t, s.Register())

	s.recordDispatch("hits", WildcardChannel, 2, 5*time.Microsecond)
	s.recordDelivery("hits", WildcardChannel, KindListener)
	s.recordDelivery("hits", WildcardChannel, KindListener)
	s.recordDispatch("clusters", "calibrated", 1, 3*time.Microsecond)
	s.recordDropped("digits", WildcardChannel)

	snapshot := s.GetSnapshot()
	assert.Equal(t, uint64(2), snapshot.TotalDispatched)
	assert.Equal(t, uint64(2), snapshot.TotalDelivered)
	assert.Equal(t, uint64(1), snapshot.TotalDropped)
	assert.Len(t, snapshot.TypeMetrics, 3)
	assert.False(t, snapshot.CollectedAt.IsZero())
}

func TestDispatchStats_GetTypeMetrics_NonExistent(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)

	metrics := s.GetTypeMetrics("nonexistent")
	assert.Nil(t, metrics)
}

func TestDispatchStats_Reset(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)
	require.NoError(t, s.Register())

	s.recordDispatch("hits", WildcardChannel, 2, 5*time.Microsecond)
	s.setDelegateCount(3)
	s.Reset()

	snapshot := s.GetSnapshot()
	assert.Empty(t, snapshot.TypeMetrics)
	assert.Equal(t, 0, snapshot.DelegateCount)
}

func TestDispatchStats_Register_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)

	require.NoError(t, s.Register())
	require.NoError(t, s.Register()) // Should not error on double registration
}

func TestDispatchStats_NilRegisterer(t *testing.T) {
	s := NewDispatchStats(nil)
	assert.NotNil(t, s)
	// Should use default registerer - don't actually register in test to avoid conflicts
}

func TestDispatchStats_ThroughMessenger(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewDispatchStats(reg)
	require.NoError(t, s.Register())

	m := NewMessenger(newTestLogger(), WithDispatchStats(s))
	receiver := newStubModule("clustering")
	failing := newStubModule("tracking")
	require.NoError(t, RegisterListener(m, receiver, func(ctx context.Context, msg *hitMessage) error {
		return nil
	}))
	require.NoError(t, RegisterListener(m, failing, func(ctx context.Context, msg *clusterMessage) error {
		return errors.New("saturated")
	}))
	require.NoError(t, m.Start())

	ctx := context.Background()
	require.NoError(t, m.Dispatch(ctx, newHitMessage("dut", 900), WildcardChannel))
	require.NoError(t, m.Dispatch(ctx, newHitMessage("dut", 901), WildcardChannel))
	require.Error(t, m.Dispatch(ctx, newClusterMessage("dut", 4), WildcardChannel))

	snapshot := s.GetSnapshot()
	assert.Equal(t, 2, snapshot.DelegateCount)
	assert.Equal(t, uint64(2), snapshot.TotalDispatched)
	assert.Equal(t, uint64(2), snapshot.TotalDelivered)
	assert.Equal(t, uint64(1), snapshot.TotalFailed)

	hits := s.GetTypeMetrics(MessageTypeFor[*hitMessage]())
	require.NotNil(t, hits)
	assert.Equal(t, uint64(2), hits.Dispatched)
	assert.Equal(t, 1.0, hits.AvgFanout)
}
