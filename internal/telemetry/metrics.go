package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "durable_tasks_claimed_total",
		Help: "Total number of tasks claimed by this worker",
	})

	tasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "durable_tasks_completed_total",
		Help: "Total number of tasks that reached a terminal state, by outcome",
	}, []string{"outcome"}) // outcome: complete, failed

	tasksSuspended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "durable_tasks_suspended_total",
		Help: "Total number of times a task executor suspended",
	})

	tasksStolen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "durable_tasks_stolen_total",
		Help: "Total number of times an executor's event append lost its ownership guard",
	})

	tasksReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "durable_tasks_released_total",
		Help: "Total number of times an executor released a task after a transient store error",
	})

	executorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "durable_executor_duration_seconds",
		Help:    "Wall-clock time spent inside one Task Executor run",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"outcome"})

	eventSourceLag = promauto.NewCounter(prometheus.CounterOpts{
		Name: "durable_eventsource_lagged_total",
		Help: "Total number of times the event source dropped buffered notifications",
	})

	wasmCompiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "durable_wasm_compiles_total",
		Help: "Total number of cold wazero module compilations",
	})

	liveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "durable_live_workers",
		Help: "Number of workers considered live as of the last liveness sweep",
	})
)

// MetricsRecorder groups the worker runtime's prometheus instrumentation
// behind named methods, matching the teacher's optimizer.MetricsRecorder
// convention rather than calling the package-level collectors directly at
// every call site.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordClaim records one task being claimed by this worker.
func (m *MetricsRecorder) RecordClaim() {
	tasksClaimed.Inc()
}

// RecordCompletion records a task reaching a terminal state.
func (m *MetricsRecorder) RecordCompletion(outcome string, duration time.Duration) {
	tasksCompleted.WithLabelValues(outcome).Inc()
	executorDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordSuspend records an executor suspending mid-run.
func (m *MetricsRecorder) RecordSuspend(duration time.Duration) {
	tasksSuspended.Inc()
	executorDuration.WithLabelValues("suspended").Observe(duration.Seconds())
}

// RecordSteal records an executor losing ownership mid-run.
func (m *MetricsRecorder) RecordSteal(duration time.Duration) {
	tasksStolen.Inc()
	executorDuration.WithLabelValues("stolen").Observe(duration.Seconds())
}

// RecordUnavailable records an executor releasing a task after a transient
// store error, rather than failing it terminally.
func (m *MetricsRecorder) RecordUnavailable(duration time.Duration) {
	tasksReleased.Inc()
	executorDuration.WithLabelValues("released").Observe(duration.Seconds())
}

// RecordEventSourceLag records the event source dropping buffered events.
func (m *MetricsRecorder) RecordEventSourceLag() {
	eventSourceLag.Inc()
}

// RecordWasmCompile records a cold module compilation.
func (m *MetricsRecorder) RecordWasmCompile() {
	wasmCompiles.Inc()
}

// RecordLiveWorkers sets the live-worker gauge after a liveness sweep.
func (m *MetricsRecorder) RecordLiveWorkers(n int) {
	liveWorkers.Set(float64(n))
}
