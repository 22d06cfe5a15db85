package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records proxy activity.
type Collector interface {
	UpstreamResponse(op string, status int)
	UpstreamRetry(op string)
	SizeLookup(cached bool)

	StreamStarted()
	StreamFinished(bytes int64, elapsed time.Duration, aborted bool)

	Handler() http.Handler
}

type PrometheusCollector struct {
	registry *prometheus.Registry

	upstreamResponses *prometheus.CounterVec
	upstreamRetries   *prometheus.CounterVec
	sizeLookups       *prometheus.CounterVec

	activeStreams  prometheus.Gauge
	bytesServed    prometheus.Counter
	streamDuration prometheus.Histogram
	clientAborts   prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,
		upstreamResponses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_upstream_responses_total",
			Help: "Origin responses by operation and status code",
		}, []string{"op", "status"}),
		upstreamRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_upstream_retries_total",
			Help: "Origin requests retried after a transient failure",
		}, []string{"op"}),
		sizeLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_size_lookups_total",
			Help: "Object size lookups by cache result",
		}, []string{"result"}),
		activeStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "stream_active_streams",
			Help: "Responses currently piping bytes",
		}),
		bytesServed: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_bytes_served_total",
			Help: "Body bytes written to clients",
		}),
		streamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stream_duration_seconds",
			Help:    "Time spent piping one ranged response",
			Buckets: prometheus.ExponentialBuckets(0.05, 3, 9),
		}),
		clientAborts: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_client_aborts_total",
			Help: "Responses cut short because the client went away",
		}),
	}
}

func (c *PrometheusCollector) UpstreamResponse(op string, status int) {
	c.upstreamResponses.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

func (c *PrometheusCollector) UpstreamRetry(op string) {
	c.upstreamRetries.WithLabelValues(op).Inc()
}

func (c *PrometheusCollector) SizeLookup(cached bool) {
	result := "miss"
	if cached {
		result = "hit"
	}
	c.sizeLookups.WithLabelValues(result).Inc()
}

func (c *PrometheusCollector) StreamStarted() { c.activeStreams.Inc() }

func (c *PrometheusCollector) StreamFinished(bytes int64, elapsed time.Duration, aborted bool) {
	c.activeStreams.Dec()
	c.bytesServed.Add(float64(bytes))
	c.streamDuration.Observe(elapsed.Seconds())
	if aborted {
		c.clientAborts.Inc()
	}
}

func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Noop discards everything.
type Noop struct{}

func (Noop) UpstreamResponse(string, int) {}
func (Noop) UpstreamRetry(string) {}
func (Noop) SizeLookup(bool) {}
func (Noop) StreamStarted() {}
func (Noop) StreamFinished(int64, time.Duration, bool) {}
func (Noop) Handler() http.Handler { return http.NotFoundHandler() }
