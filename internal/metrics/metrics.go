package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"aidigest/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace         = "aidigest"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Metrics collects ingestion and delivery counters. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchFailures  *prometheus.CounterVec
	itemsSubmitted *prometheus.CounterVec
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	itemsDelivered prometheus.Counter
	commits        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Failed fetch attempts per source.",
		}, []string{"source"}),
		itemsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_submitted_total",
			Help:      "Submitted candidates by deduplication outcome.",
		}, []string{"result"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Delivery cycles by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of delivery cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		itemsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_delivered_total",
			Help:      "Items handed to the notifier and confirmed sent.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_commits_total",
			Help:      "Ledger commits by outcome.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetchFailures,
		m.itemsSubmitted,
		m.cycles,
		m.cycleDuration,
		m.itemsDelivered,
		m.commits,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

func (m *Metrics) FetchFailed(source string) {
	if m == nil {
		return
	}

	m.fetchFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) ItemSubmitted(result domain.SubmitResult) {
	if m == nil {
		return
	}

	m.itemsSubmitted.WithLabelValues(result.String()).Inc()
}

func (m *Metrics) CycleFinished(trigger, outcome string, duration time.Duration, delivered int) {
	if m == nil {
		return
	}

	m.cycles.WithLabelValues(trigger, outcome).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	m.itemsDelivered.Add(float64(delivered))
}

func (m *Metrics) Committed(result domain.CommitResult) {
	if m == nil {
		return
	}

	m.commits.WithLabelValues(result.String()).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(ctx, "Failed to shut down metrics server",
				"error", err,
				"addr", addr)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
