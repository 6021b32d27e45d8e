package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haukened/rr-blocklist/internal/dns/domain"
)

const namespace = "rr_blocklist"

// Recorder collects probe and run metrics on a private registry. It is
// exported once at the end of a run as a node_exporter textfile.
type Recorder struct {
	registry *prometheus.Registry

	attempts *prometheus.CounterVec
	rtt      *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	feeds    *prometheus.CounterVec

	domainsTotal prometheus.Gauge
	domainsValid prometheus.Gauge
	duration     prometheus.Gauge
	interrupted  prometheus.Gauge
	lastRun      prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probe_attempts_total",
				Help:      "DNS probe attempts by resolver pool and result",
			},
			[]string{"pool", "status"},
		),
		rtt: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "probe_duration_seconds",
				Help:      "DNS probe round trip time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domains_total",
				Help:      "Validated domains by deciding pool, or invalid",
			},
			[]string{"outcome"},
		),
		feeds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feeds_total",
				Help:      "Feed downloads by result",
			},
			[]string{"result"},
		),
		domainsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_domains",
			Help:      "Domains gathered from all feeds in the last run",
		}),
		domainsValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_valid_domains",
			Help:      "Domains written to the rule file in the last run",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last validation run",
		}),
		interrupted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_interrupted",
			Help:      "1 if the last run was cancelled before completion",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	r.registry.MustRegister(
		r.attempts, r.rtt, r.outcomes, r.feeds,
		r.domainsTotal, r.domainsValid, r.duration, r.interrupted, r.lastRun,
	)
	return r
}

// ObserveAttempt counts one probe attempt. Only completed replies feed the
// latency histogram.
func (r *Recorder) ObserveAttempt(pool string, a domain.Attempt) {
	r.attempts.WithLabelValues(pool, a.Status.String()).Inc()
	if a.Completed() {
		r.rtt.WithLabelValues(pool).Observe(a.RTT.Seconds())
	}
}

func (r *Recorder) ObserveOutcome(outcome string) {
	r.outcomes.WithLabelValues(outcome).Inc()
}

// ObserveFeed counts a feed download; err nil means success.
func (r *Recorder) ObserveFeed(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.feeds.WithLabelValues(result).Inc()
}

// ObserveRun records the end-of-run gauges.
func (r *Recorder) ObserveRun(c domain.CounterSnapshot, elapsed time.Duration, interrupted bool, finished time.Time) {
	r.domainsTotal.Set(float64(c.Total))
	r.domainsValid.Set(float64(c.Valid))
	r.duration.Set(elapsed.Seconds())
	if interrupted {
		r.interrupted.Set(1)
	} else {
		r.interrupted.Set(0)
	}
	r.lastRun.Set(float64(finished.Unix()))
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes all metrics in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
