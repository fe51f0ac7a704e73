package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchStats tracks messenger dispatch statistics.
type DispatchStats struct {
	mu sync.RWMutex

	// Per-message-type counts
	typeCounts map[MessageType]*MessageTypeMetrics

	delegateCount int

	// Prometheus collectors
	dispatchesTotal *prometheus.CounterVec
	deliveriesTotal *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	failuresTotal   *prometheus.CounterVec
	delegatesGauge  prometheus.Gauge
	durationHist    *prometheus.HistogramVec
	fanoutHist      *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// MessageTypeMetrics holds dispatch counts for a single message type.
type MessageTypeMetrics struct {
	Dispatched     uint64    `json:"dispatched"`
	Delivered      uint64    `json:"delivered"`
	Dropped        uint64    `json:"dropped"`
	Failed         uint64    `json:"failed"`
	AvgFanout      float64   `json:"avg_fanout"`
	LastDispatchAt time.Time `json:"last_dispatch_at,omitempty"`
}

// DispatchStatsSnapshot provides a point-in-time view of dispatch metrics.
type DispatchStatsSnapshot struct {
	TotalDispatched uint64                              `json:"total_dispatched"`
	TotalDelivered  uint64                              `json:"total_delivered"`
	TotalDropped    uint64                              `json:"total_dropped"`
	TotalFailed     uint64                              `json:"total_failed"`
	DelegateCount   int                                 `json:"delegate_count"`
	TypeMetrics     map[MessageType]*MessageTypeMetrics `json:"type_metrics"`
	CollectedAt     time.Time                           `json:"collected_at"`
}

// newMessengerCounterVec creates a new counter vec with standard simflow/messenger namespace.
func newMessengerCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simflow",
			Subsystem: "messenger",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// newMessengerHistogramVec creates a new histogram vec with standard simflow/messenger namespace.
func newMessengerHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simflow",
			Subsystem: "messenger",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewDispatchStats creates a new dispatch metrics collector.
func NewDispatchStats(registerer prometheus.Registerer) *DispatchStats {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &DispatchStats{
		typeCounts:      make(map[MessageType]*MessageTypeMetrics),
		registerer:      registerer,
		dispatchesTotal: newMessengerCounterVec("dispatches_total", "Total number of messages dispatched through the messenger", []string{"message_type", "channel"}),
		deliveriesTotal: newMessengerCounterVec("deliveries_total", "Total number of delegate deliveries, by delegate kind", []string{"message_type", "channel", "kind"}),
		droppedTotal:    newMessengerCounterVec("dropped_total", "Total number of dispatches that matched no delegate", []string{"message_type", "channel"}),
		failuresTotal:   newMessengerCounterVec("failures_total", "Total number of dispatches aborted by a delegate error", []string{"message_type", "channel"}),
		delegatesGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simflow",
			Subsystem: "messenger",
			Name:      "delegates",
			Help:      "Number of delegates in the sealed registry",
		}),
		durationHist: newMessengerHistogramVec("dispatch_duration_seconds", "Time spent delivering one message to all matching delegates", []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1}, []string{"message_type"}),
		fanoutHist:   newMessengerHistogramVec("dispatch_fanout", "Number of delegates reached by one dispatch", []float64{1, 2, 3, 5, 10, 20, 50}, []string{"message_type"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (s *DispatchStats) Register() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		s.dispatchesTotal,
		s.deliveriesTotal,
		s.droppedTotal,
		s.failuresTotal,
		s.delegatesGauge,
		s.durationHist,
		s.fanoutHist,
	}

	for _, c := range collectors {
		if err := s.registerer.Register(c); err != nil {
			// Check if it's already registered (not an error)
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	s.registered = true
	return nil
}

// recordDispatch records one completed dispatch that reached delivered delegates.
func (s *DispatchStats) recordDispatch(msgType MessageType, channel string, delivered int, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics := s.getOrCreateTypeMetrics(msgType)
	metrics.Dispatched++
	metrics.LastDispatchAt = time.Now()

	// Update average fanout (rolling average)
	total := metrics.Dispatched
	metrics.AvgFanout = ((metrics.AvgFanout * float64(total-1)) + float64(delivered)) / float64(total)

	s.dispatchesTotal.WithLabelValues(string(msgType), channel).Inc()
	s.durationHist.WithLabelValues(string(msgType)).Observe(duration.Seconds())
	s.fanoutHist.WithLabelValues(string(msgType)).Observe(float64(delivered))
}

// recordDelivery records one delegate that accepted the message.
func (s *DispatchStats) recordDelivery(msgType MessageType, channel string, kind DelegateKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics := s.getOrCreateTypeMetrics(msgType)
	metrics.Delivered++

	s.deliveriesTotal.WithLabelValues(string(msgType), channel, kind.String()).Inc()
}

// recordDropped records a dispatch that matched no delegate.
func (s *DispatchStats) recordDropped(msgType MessageType, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics := s.getOrCreateTypeMetrics(msgType)
	metrics.Dropped++
	metrics.LastDispatchAt = time.Now()

	s.droppedTotal.WithLabelValues(string(msgType), channel).Inc()
}

// recordFailure records a dispatch aborted by a delegate error.
func (s *DispatchStats) recordFailure(msgType MessageType, channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics := s.getOrCreateTypeMetrics(msgType)
	metrics.Failed++
	metrics.LastDispatchAt = time.Now()

	s.failuresTotal.WithLabelValues(string(msgType), channel).Inc()
}

// setDelegateCount records the size of the sealed registry.
func (s *DispatchStats) setDelegateCount(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delegateCount = count
	s.delegatesGauge.Set(float64(count))
}

// GetSnapshot returns a point-in-time snapshot of all dispatch metrics.
func (s *DispatchStats) GetSnapshot() DispatchStatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := DispatchStatsSnapshot{
		DelegateCount: s.delegateCount,
		TypeMetrics:   make(map[MessageType]*MessageTypeMetrics),
		CollectedAt:   time.Now(),
	}

	for msgType, metrics := range s.typeCounts {
		// Create a copy
		metricsCopy := &MessageTypeMetrics{
			Dispatched:     metrics.Dispatched,
			Delivered:      metrics.Delivered,
			Dropped:        metrics.Dropped,
			Failed:         metrics.Failed,
			AvgFanout:      metrics.AvgFanout,
			LastDispatchAt: metrics.LastDispatchAt,
		}
		snapshot.TypeMetrics[msgType] = metricsCopy
		snapshot.TotalDispatched += metrics.Dispatched
		snapshot.TotalDelivered += metrics.Delivered
		snapshot.TotalDropped += metrics.Dropped
		snapshot.TotalFailed += metrics.Failed
	}

	return snapshot
}

// GetTypeMetrics returns metrics for a specific message type.
func (s *DispatchStats) GetTypeMetrics(msgType MessageType) *MessageTypeMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if metrics, ok := s.typeCounts[msgType]; ok {
		// Return a copy
		return &MessageTypeMetrics{
			Dispatched:     metrics.Dispatched,
			Delivered:      metrics.Delivered,
			Dropped:        metrics.Dropped,
			Failed:         metrics.Failed,
			AvgFanout:      metrics.AvgFanout,
			LastDispatchAt: metrics.LastDispatchAt,
		}
	}
	return nil
}

func (s *DispatchStats) getOrCreateTypeMetrics(msgType MessageType) *MessageTypeMetrics {
	if metrics, ok := s.typeCounts[msgType]; ok {
		return metrics
	}
	metrics := &MessageTypeMetrics{}
	s.typeCounts[msgType] = metrics
	return metrics
}

// Reset resets all metrics (useful for testing).
func (s *DispatchStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.typeCounts = make(map[MessageType]*MessageTypeMetrics)
	s.delegateCount = 0
	s.dispatchesTotal.Reset()
	s.deliveriesTotal.Reset()
	s.droppedTotal.Reset()
	s.failuresTotal.Reset()
	s.delegatesGauge.Set(0)
	s.durationHist.Reset()
	s.fanoutHist.Reset()
}
