package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"engram/internal/logging"
	"engram/internal/store"
)

// Metrics holds the gauges exposed at /metrics: jobs per state and the
// total number of title rows across every job. This isn't load-bearing for the core
// state machine; it's a read-only mirror sampled from the store.
type Metrics struct {
	registry    *prometheus.Registry
	jobsByState *prometheus.GaugeVec
	titlesTotal prometheus.Gauge
}

// NewMetrics constructs and registers the gauges.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		jobsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "engram",
			Name:      "jobs_in_state",
			Help:      "Number of jobs currently in each state.",
		}, []string{"state"}),
		titlesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "engram",
			Name:      "titles_total",
			Help:      "Total number of title rows across every job.",
		}),
	}
	registry.MustRegister(m.jobsByState, m.titlesTotal)
	return m
}

// Registry exposes the underlying prometheus registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StartSampling periodically refreshes the gauges from the store until ctx
// is cancelled.
func (m *Metrics) StartSampling(ctx context.Context, st *store.Store, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		m.sample(ctx, st, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample(ctx, st, logger)
			}
		}
	}()
}

func (m *Metrics) sample(ctx context.Context, st *store.Store, logger *slog.Logger) {
	all, err := st.ListJobs(ctx)
	if err != nil {
		logger.Warn("metrics sample failed", logging.Error(err))
		return
	}
	counts := map[store.JobState]int{
		store.JobIdle: 0, store.JobIdentifying: 0, store.JobReviewNeeded: 0,
		store.JobRipping: 0, store.JobMatching: 0, store.JobOrganizing: 0,
		store.JobCompleted: 0, store.JobFailed: 0,
	}
	titles := 0
	for _, job := range all {
		counts[job.State]++
		list, err := st.ListTitlesByJob(ctx, job.ID)
		if err == nil {
			titles += len(list)
		}
	}
	for state, count := range counts {
		m.jobsByState.WithLabelValues(string(state)).Set(float64(count))
	}
	m.titlesTotal.Set(float64(titles))
}
