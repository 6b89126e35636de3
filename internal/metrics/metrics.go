// Package metrics defines the Prometheus collectors of the job engine.
// Every method is safe on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/RezaEskandarii/firejobs/types"
)

const namespace = "firejobs"

type Metrics struct {
	registry *prometheus.Registry

	claimed        *prometheus.CounterVec
	outcomes       *prometheus.CounterVec
	batchFailures  *prometheus.CounterVec
	leaseExtension *prometheus.CounterVec
	periodicTicks  *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, alongside the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		claimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_claimed_total",
			Help:      "Jobs leased by runners.",
		}, []string{"queue"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Recorded job outcomes by status.",
		}, []string{"queue", "status"}),
		batchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Poll cycles that failed before or while executing a batch.",
		}, []string{"queue"}),
		leaseExtension: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_extensions_total",
			Help:      "Rows whose lease was extended by a heartbeat.",
		}, []string{"queue"}),
		periodicTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "periodic_ticks_total",
			Help:      "Periodic scheduler ticks by result.",
		}, []string{"queue", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Execution time of job functions.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"queue", "job"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.claimed, m.outcomes, m.batchFailures, m.leaseExtension, m.periodicTicks, m.duration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) JobsClaimed(queue string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.claimed.WithLabelValues(queue).Add(float64(n))
}

func (m *Metrics) Outcome(queue string, status types.JobStatus) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(queue, string(status)).Inc()
}

func (m *Metrics) BatchFailed(queue string) {
	if m == nil {
		return
	}
	m.batchFailures.WithLabelValues(queue).Inc()
}

func (m *Metrics) LeasesExtended(queue string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.leaseExtension.WithLabelValues(queue).Add(float64(n))
}

func (m *Metrics) PeriodicTick(queue, result string) {
	if m == nil {
		return
	}
	m.periodicTicks.WithLabelValues(queue, result).Inc()
}

func (m *Metrics) JobDuration(queue, typeName, methodName string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(queue, typeName+"."+methodName).Observe(d.Seconds())
}
