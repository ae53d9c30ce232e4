package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetricsOptions configures the scheduler collectors.
type SchedulerMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// SchedulerMetrics exposes Prometheus collectors for timer and notification
// instrumentation.
type SchedulerMetrics struct {
	TimersArmed          *prometheus.GaugeVec
	NotificationsSent    *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	SweepRuns            prometheus.Counter
	SweepDuration        prometheus.Histogram
}

// NewSchedulerMetrics constructs the collectors and registers them with the
// provided registerer.
func NewSchedulerMetrics(opts SchedulerMetricsOptions) (*SchedulerMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "bot"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	timersArmed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "timers_armed",
		Help:      "Number of live timers partitioned by kind.",
	}, []string{"kind"})

	sent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "notifications_sent_total",
		Help:      "Total notifications delivered partitioned by kind.",
	}, []string{"kind"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "notification_failures_total",
		Help:      "Total notification delivery failures partitioned by reason.",
	}, []string{"reason"})

	sweepRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "healthcheck_runs_total",
		Help:      "Total daily health check sweeps executed.",
	})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "healthcheck_duration_seconds",
		Help:      "Histogram of health check sweep durations in seconds.",
		Buckets:   buckets,
	})

	for _, collector := range []prometheus.Collector{timersArmed, sent, failures, sweepRuns, sweepDuration} {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register scheduler collector: %w", err)
		}
	}

	return &SchedulerMetrics{
		TimersArmed:          timersArmed,
		NotificationsSent:    sent,
		NotificationFailures: failures,
		SweepRuns:            sweepRuns,
		SweepDuration:        sweepDuration,
	}, nil
}
