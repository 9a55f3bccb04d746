package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics tracks queue dispatch outcomes for the worker.
type DispatchMetrics struct {
	delivered   *prometheus.CounterVec
	failed      *prometheus.CounterVec
	retried     prometheus.Counter
	batchSize   prometheus.Histogram
	notifyTime  prometheus.Histogram
	queueDepth  *prometheus.GaugeVec
	workerState *prometheus.GaugeVec
}

// NewDispatchMetrics registers the dispatch worker metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_delivered_total",
		Help: "Queue entries delivered to sellers.",
	}, []string{"tier"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_failed_total",
		Help: "Queue entries that exhausted their delivery attempts.",
	}, []string{"tier"})
	retried := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_retried_total",
		Help: "Delivery attempts rescheduled for retry.",
	})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_batch_size",
		Help:    "Number of queue entries claimed per poll.",
		Buckets: prometheus.LinearBuckets(0, 5, 11),
	})
	notifyTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_notify_duration_seconds",
		Help:    "Time spent publishing a seller notification.",
		Buckets: prometheus.DefBuckets,
	})
	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_queue_depth",
		Help: "Queue entries by status at last poll.",
	}, []string{"status"})
	workerState := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_worker_state",
		Help: "Current worker lifecycle state (1 for active state, 0 otherwise).",
	}, []string{"state"})
	reg.MustRegister(delivered, failed, retried, batchSize, notifyTime, queueDepth, workerState)
	return &DispatchMetrics{
		delivered:   delivered,
		failed:      failed,
		retried:     retried,
		batchSize:   batchSize,
		notifyTime:  notifyTime,
		queueDepth:  queueDepth,
		workerState: workerState,
	}
}

// IncDelivered increments the delivered counter for a membership tier.
func (m *DispatchMetrics) IncDelivered(tier string) {
	if m == nil || m.delivered == nil {
		return
	}
	m.delivered.WithLabelValues(normalizeLabel(tier)).Inc()
}

// IncFailed increments the failed counter for a membership tier.
func (m *DispatchMetrics) IncFailed(tier string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(tier)).Inc()
}

// IncRetried counts a delivery attempt rescheduled with backoff.
func (m *DispatchMetrics) IncRetried() {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.Inc()
}

// ObserveBatchSize records how many entries a poll claimed.
func (m *DispatchMetrics) ObserveBatchSize(n int) {
	if m == nil || m.batchSize == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}

// ObserveNotifyDuration records one notification publish duration.
func (m *DispatchMetrics) ObserveNotifyDuration(d time.Duration) {
	if m == nil || m.notifyTime == nil {
		return
	}
	m.notifyTime.Observe(d.Seconds())
}

// SetQueueDepth records the current depth for a queue status.
func (m *DispatchMetrics) SetQueueDepth(status string, n int64) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(status)).Set(float64(n))
}

// SetWorkerState marks the given lifecycle state as active and clears the others.
func (m *DispatchMetrics) SetWorkerState(active string, all []string) {
	if m == nil || m.workerState == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == active {
			v = 1.0
		}
		m.workerState.WithLabelValues(normalizeLabel(s)).Set(v)
	}
}
