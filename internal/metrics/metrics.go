// Package metrics exposes Prometheus collectors that report relay activity.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Task outcomes
const (
	OutcomeDone            = "done"
	OutcomeExtractFailed   = "extract_failed"
	OutcomeMissingOutput   = "missing_output"
	OutcomeUploadFailed    = "upload_failed"
	OutcomeFileTooLarge    = "file_too_large"
	AdmissionAdmitted      = "admitted"
	EditResultOK           = "ok"
	EditResultNotModified  = "not_modified"
	EditResultRateLimited  = "rate_limited"
	EditResultFailed       = "failed"
	shutdownTimeout        = 5 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// Metrics holds the relay collectors on a private registry
type Metrics struct {
	registry      *prometheus.Registry
	admissions    *prometheus.CounterVec
	tasksFinished *prometheus.CounterVec
	activeTasks   prometheus.Gauge
	taskDuration  prometheus.Histogram
	progressEdits *prometheus.CounterVec
	throttleWaits prometheus.Counter
}

// New registers the relay collectors plus the Go runtime and process
// collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Admission decisions by result (admitted or rejection reason).",
		}, []string{"result"}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Tasks that left the registry, by outcome.",
		}, []string{"outcome"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Tasks currently registered.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from admission to the end of the task.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		progressEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_edits_total",
			Help:      "Status message edits by result.",
		}, []string{"result"}),
		throttleWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttle_waits_total",
			Help:      "Times an edit waited for a server-dictated retry_after.",
		}),
	}
	reg.MustRegister(
		m.admissions,
		m.tasksFinished,
		m.activeTasks,
		m.taskDuration,
		m.progressEdits,
		m.throttleWaits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAdmission counts an admission decision
func (m *Metrics) ObserveAdmission(result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(result).Inc()
}

// SetActiveTasks reports the current registry size
func (m *Metrics) SetActiveTasks(n int) {
	if m == nil {
		return
	}
	m.activeTasks.Set(float64(n))
}

// TaskFinished records the outcome and duration of a task
func (m *Metrics) TaskFinished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(outcome).Inc()
	m.taskDuration.Observe(took.Seconds())
}

// ObserveEdit counts a status message edit attempt
func (m *Metrics) ObserveEdit(result string) {
	if m == nil {
		return
	}
	m.progressEdits.WithLabelValues(result).Inc()
}

// ObserveThrottleWait counts a retry_after wait
func (m *Metrics) ObserveThrottleWait() {
	if m == nil {
		return
	}
	m.throttleWaits.Inc()
}

// Handler serves /metrics and /healthz
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve listens on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
