package webhook

import (
	"sort"
	"sync"
	"time"
)

// Event outcomes passed to Recorder.ObserveEvent
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeUnknown   = "unknown"
)

// Recorder receives dispatch outcomes. internal/metrics exports them to Prometheus.
type Recorder interface {
	ObserveDelivery(status string, duration time.Duration)
	ObserveEvent(kind string, outcome string)
	ObserveHandler(kind string, duration time.Duration, failed bool)
}

type multiRecorder []Recorder

// CombineRecorders returns a Recorder that forwards every call to each of rs
func CombineRecorders(rs ...Recorder) Recorder {
	if len(rs) == 1 {
		return rs[0]
	}
	return multiRecorder(rs)
}

func (m multiRecorder) ObserveDelivery(status string, duration time.Duration) {
	for _, r := range m {
		r.ObserveDelivery(status, duration)
	}
}

func (m multiRecorder) ObserveEvent(kind string, outcome string) {
	for _, r := range m {
		r.ObserveEvent(kind, outcome)
	}
}

func (m multiRecorder) ObserveHandler(kind string, duration time.Duration, failed bool) {
	for _, r := range m {
		r.ObserveHandler(kind, duration, failed)
	}
}

// MetricsTracker keeps in-process counters per event kind
type MetricsTracker struct {
	kinds      map[string]*KindStats
	deliveries DeliveryStats
	mu         sync.RWMutex
}

// NewMetricsTracker creates a new metrics tracker
func NewMetricsTracker() *MetricsTracker {
	return &MetricsTracker{
		kinds: make(map[string]*KindStats),
	}
}

func (mt *MetricsTracker) statsFor(kind string) *KindStats {
	s, exists := mt.kinds[kind]
	if !exists {
		s = &KindStats{Kind: kind}
		mt.kinds[kind] = s
	}
	return s
}

// ObserveDelivery implements Recorder
func (mt *MetricsTracker) ObserveDelivery(status string, _ time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if status == string(StatusOK) {
		mt.deliveries.Accepted++
	} else {
		mt.deliveries.Rejected++
	}
	mt.deliveries.LastDeliveryAt = time.Now().UnixMilli()
}

// ObserveEvent implements Recorder
func (mt *MetricsTracker) ObserveEvent(kind string, outcome string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	s := mt.statsFor(kind)
	s.Received++
	switch outcome {
	case OutcomeProcessed:
		s.Processed++
	case OutcomeDuplicate:
		s.Duplicates++
	case OutcomeUnknown:
		s.Unknown++
	}
	s.LastEventAt = time.Now().UnixMilli()
}

// ObserveHandler implements Recorder
func (mt *MetricsTracker) ObserveHandler(kind string, duration time.Duration, failed bool) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	s := mt.statsFor(kind)
	s.HandlerCalls++
	if failed {
		s.HandlerFailures++
	}

	// Running average
	ms := float64(duration) / float64(time.Millisecond)
	s.AverageHandlerTime = (s.AverageHandlerTime*float64(s.HandlerCalls-1) + ms) / float64(s.HandlerCalls)
}

// GetStats returns a copy of every kind's counters, sorted by kind
func (mt *MetricsTracker) GetStats() []KindStats {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	result := make([]KindStats, 0, len(mt.kinds))
	for _, s := range mt.kinds {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result
}

// GetStatsForKind returns the counters of one kind, or nil if none were recorded
func (mt *MetricsTracker) GetStatsForKind(kind string) *KindStats {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	s, exists := mt.kinds[kind]
	if !exists {
		return nil
	}

	// Return a copy
	result := *s
	return &result
}

// GetDeliveries returns the delivery counters
func (mt *MetricsTracker) GetDeliveries() DeliveryStats {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.deliveries
}
