package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kaelzs/ThreeW/internal/logger"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	scheduledTotal      prometheus.Counter
	cancelledTotal      prometheus.Counter
	scheduleFailedTotal *prometheus.CounterVec
	activeRuns          prometheus.Gauge

	firedTotal     prometheus.Counter
	fireLateness   prometheus.Histogram
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	runErrorsTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a sink whose collectors are registered on reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulingMetrics(reg)
	s.initExecutionMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulingMetrics(reg prometheus.Registerer) {
	s.scheduledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threew_runs_scheduled_total",
		Help: "Total number of one-shot runs armed.",
	})
	s.cancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threew_runs_cancelled_total",
		Help: "Total number of armed runs cancelled before firing.",
	})
	s.scheduleFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threew_schedule_failures_total",
		Help: "Total number of start requests rejected, by reason.",
	}, []string{"reason"})
	s.activeRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "threew_runs_active",
		Help: "Number of runs currently scheduled or firing.",
	})

	s.register(reg, s.scheduledTotal, "threew_runs_scheduled_total")
	s.register(reg, s.cancelledTotal, "threew_runs_cancelled_total")
	s.register(reg, s.scheduleFailedTotal, "threew_schedule_failures_total")
	s.register(reg, s.activeRuns, "threew_runs_active")
}

func (s *PrometheusSink) initExecutionMetrics(reg prometheus.Registerer) {
	s.firedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threew_runs_fired_total",
		Help: "Total number of runs whose timer fired.",
	})
	s.fireLateness = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "threew_fire_lateness_seconds",
		Help:    "Difference between the actual and the planned fire time in seconds.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	})
	s.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threew_runs_completed_total",
		Help: "Total number of finished script executions, by outcome.",
	}, []string{"outcome"})
	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "threew_run_duration_seconds",
		Help:    "Script execution time in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.runErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threew_run_errors_total",
		Help: "Total number of failed script executions, by reason.",
	}, []string{"reason"})

	s.register(reg, s.firedTotal, "threew_runs_fired_total")
	s.register(reg, s.fireLateness, "threew_fire_lateness_seconds")
	s.register(reg, s.runsTotal, "threew_runs_completed_total")
	s.register(reg, s.runDuration, "threew_run_duration_seconds")
	s.register(reg, s.runErrorsTotal, "threew_run_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		logger.L().Warn("metrics: failed to register collector", "name", name, "error", err)
	}
}

func (s *PrometheusSink) RunScheduled() {
	s.scheduledTotal.Inc()
}

func (s *PrometheusSink) RunCancelled() {
	s.cancelledTotal.Inc()
}

func (s *PrometheusSink) ScheduleFailed(reason string) {
	s.scheduleFailedTotal.WithLabelValues(reason).Inc()
}

func (s *PrometheusSink) ActiveRunsUpdate(count int) {
	s.activeRuns.Set(float64(count))
}

func (s *PrometheusSink) RunFired(lateness time.Duration) {
	s.firedTotal.Inc()
	if lateness < 0 {
		lateness = 0
	}
	s.fireLateness.Observe(lateness.Seconds())
}

func (s *PrometheusSink) RunCompleted(duration time.Duration, err error) {
	s.runDuration.Observe(duration.Seconds())
	if err != nil {
		s.runsTotal.WithLabelValues(OutcomeFailed).Inc()
		s.runErrorsTotal.WithLabelValues(Classify(err)).Inc()
		return
	}
	s.runsTotal.WithLabelValues(OutcomeSuccess).Inc()
}
