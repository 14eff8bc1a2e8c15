package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-async-queue/core"
)

// DefaultNamespace prefixes every collector when no namespace is given.
const DefaultNamespace = "asyncqueue"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	operationDurationSeconds *prom.HistogramVec
	operationPanicTotal      *prom.CounterVec
	operationRejectedTotal   *prom.CounterVec
	delayedFiredTotal        *prom.CounterVec
	queueDepth               *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Operation execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"queue", "kind"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "operation_panic_total",
		Help:      "Total number of operation panics.",
	}, []string{"queue"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "operation_rejected_total",
		Help:      "Total number of discarded submissions.",
	}, []string{"queue", "reason"})
	firedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "delayed_operation_fired_total",
		Help:      "Total number of delayed operations released to run.",
	}, []string{"queue", "timer_id"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of ready operations.",
	}, []string{"queue"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if firedVec, err = registerCollector(reg, firedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		operationDurationSeconds: durationVec,
		operationPanicTotal:      panicVec,
		operationRejectedTotal:   rejectedVec,
		delayedFiredTotal:        firedVec,
		queueDepth:               queueDepthVec,
	}, nil
}

// RecordOperationDuration records operation execution duration.
func (m *MetricsExporter) RecordOperationDuration(queueName string, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDurationSeconds.WithLabelValues(normalizeLabel(queueName, "unknown"), normalizeLabel(kind, "unknown")).Observe(duration.Seconds())
}

// RecordOperationPanic records operation panic events.
func (m *MetricsExporter) RecordOperationPanic(queueName string, panicInfo any) {
	if m == nil {
		return
	}
	m.operationPanicTotal.WithLabelValues(normalizeLabel(queueName, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(queueName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(queueName, "unknown")).Set(float64(depth))
}

// RecordOperationRejected records discarded submissions.
func (m *MetricsExporter) RecordOperationRejected(queueName string, reason string) {
	if m == nil {
		return
	}
	m.operationRejectedTotal.WithLabelValues(normalizeLabel(queueName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordDelayedOperationFired records a delayed operation leaving the pending set.
func (m *MetricsExporter) RecordDelayedOperationFired(queueName string, timerID core.TimerID) {
	if m == nil {
		return
	}
	m.delayedFiredTotal.WithLabelValues(normalizeLabel(queueName, "unknown"), timerID.String()).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
