// Package prometheus implements pkg/metrics.Metrics on top of
// client_golang, exposed through the default Prometheus registry.
package prometheus

import (
	"time"

	"github.com/catalogfs/commitcoord/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type collector struct {
	attempts     prometheus.Counter
	successes    prometheus.Counter
	conflicts    prometheus.Counter
	phaseLatency *prometheus.HistogramVec
	trackerSize  prometheus.Gauge
	archiveSize  prometheus.Gauge
}

// New registers the coordinator's metrics with reg and returns a
// metrics.Metrics backed by them.
func New(reg prometheus.Registerer) metrics.Metrics {
	factory := promauto.With(reg)
	return &collector{
		attempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitcoord_commit_attempts_total",
			Help: "Total number of commit attempts started.",
		}),
		successes: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitcoord_commit_successes_total",
			Help: "Total number of commit attempts that published a version.",
		}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "commitcoord_commit_conflicts_total",
			Help: "Total number of commit attempts that failed with a concurrent modification.",
		}),
		phaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "commitcoord_phase_duration_seconds",
			Help:    "Duration of individual protocol phases.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		trackerSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "commitcoord_tracker_backlog",
			Help: "Number of sentinels currently present in tracker/.",
		}),
		archiveSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "commitcoord_archive_backlog",
			Help: "Number of tombstones currently present in archive/.",
		}),
	}
}

func (c *collector) CommitAttempt()  { c.attempts.Inc() }
func (c *collector) CommitSuccess()  { c.successes.Inc() }
func (c *collector) CommitConflict() { c.conflicts.Inc() }

func (c *collector) ObservePhase(phase string, d time.Duration) {
	c.phaseLatency.WithLabelValues(phase).Observe(d.Seconds())
}

func (c *collector) SetTrackerBacklog(n int) { c.trackerSize.Set(float64(n)) }
func (c *collector) SetArchiveBacklog(n int) { c.archiveSize.Set(float64(n)) }
