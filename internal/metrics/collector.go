// Package metrics exposes a run's counters over Prometheus:
// file-transition counts, bytes transferred, and tombstones reclaimed.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls whether and where the collector serves Prometheus
// metrics.
type Config struct {
	Enabled   bool
	Port      int
	Path      string
	Namespace string
}

// Transition names the per-file outcomes a sync run tallies.
type Transition string

const (
	TransitionNew       Transition = "new"
	TransitionModified  Transition = "modified"
	TransitionUnchanged Transition = "unchanged"
	TransitionDeleted   Transition = "deleted"
	TransitionErrored   Transition = "errored"
)

// Collector tracks one backup run's counters.
type Collector struct {
	mu     sync.Mutex
	config Config

	registry *prometheus.Registry
	server   *http.Server

	transitionCounter *prometheus.CounterVec
	bytesUploaded     prometheus.Counter
	tombstonesReaped  prometheus.Counter
	runDuration       prometheus.Histogram

	counts      map[Transition]int64
	bytesTotal  int64
	reapedTotal int64
}

// NewCollector builds a Collector. When config.Enabled is false the
// returned Collector tracks counts in memory but serves no HTTP endpoint.
func NewCollector(config Config) (*Collector, error) {
	if config.Namespace == "" {
		config.Namespace = "driftlock"
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	c := &Collector{
		config: config,
		counts: make(map[Transition]int64),
	}

	if !config.Enabled {
		return c, nil
	}

	c.registry = prometheus.NewRegistry()

	c.transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "file_transitions_total",
		Help:      "Files processed by outcome.",
	}, []string{"transition"})

	c.bytesUploaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "bytes_uploaded_total",
		Help:      "Bytes written to the object store this run.",
	})

	c.tombstonesReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "tombstones_reaped_total",
		Help:      "Expired deletion markers permanently removed.",
	})

	c.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of a complete backup run.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
	})

	for _, m := range []prometheus.Collector{c.transitionCounter, c.bytesUploaded, c.tombstonesReaped, c.runDuration} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return c, nil
}

// Start serves the Prometheus handler in the background until ctx is
// canceled. A no-op when metrics are disabled.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Stop shuts down the metrics HTTP server, if running.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// RecordTransition tallies one file's outcome.
func (c *Collector) RecordTransition(t Transition) {
	c.mu.Lock()
	c.counts[t]++
	c.mu.Unlock()

	if c.config.Enabled {
		c.transitionCounter.WithLabelValues(string(t)).Inc()
	}
}

// RecordBytesUploaded adds n bytes to the run's upload total.
func (c *Collector) RecordBytesUploaded(n int64) {
	c.mu.Lock()
	c.bytesTotal += n
	c.mu.Unlock()

	if c.config.Enabled {
		c.bytesUploaded.Add(float64(n))
	}
}

// RecordTombstonesReaped adds n to the count of permanently removed
// deletion markers.
func (c *Collector) RecordTombstonesReaped(n int64) {
	c.mu.Lock()
	c.reapedTotal += n
	c.mu.Unlock()

	if c.config.Enabled {
		c.tombstonesReaped.Add(float64(n))
	}
}

// RecordRunDuration records the run's total wall-clock time.
func (c *Collector) RecordRunDuration(d time.Duration) {
	if c.config.Enabled {
		c.runDuration.Observe(d.Seconds())
	}
}

// Summary is a point-in-time copy of the collector's counters, as returned
// by Snapshot. The printed and JSON run reports are built from
// cmd/driftlock's own Summary, not from this one.
type Summary struct {
	New              int64
	Modified         int64
	Unchanged        int64
	Deleted          int64
	Errored          int64
	BytesUploaded    int64
	TombstonesReaped int64
}

// Snapshot returns the current counters.
func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Summary{
		New:              c.counts[TransitionNew],
		Modified:         c.counts[TransitionModified],
		Unchanged:        c.counts[TransitionUnchanged],
		Deleted:          c.counts[TransitionDeleted],
		Errored:          c.counts[TransitionErrored],
		BytesUploaded:    c.bytesTotal,
		TombstonesReaped: c.reapedTotal,
	}
}
