package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records relay activity.
type Collector interface {
	ClientConnected()
	ClientDisconnected()

	RoomCreated()
	RoomDestroyed(lifetime time.Duration)

	FrameReceived(event string, sizeBytes int)
	FrameRelayed(actionType string, recipients int)
	FrameDropped(reason string)

	// Handler serves the metrics endpoint.
	Handler() http.Handler
}

// PrometheusCollector implements Collector on a private registry so
// several collectors can coexist in one process.
type PrometheusCollector struct {
	registry *prometheus.Registry

	activeClients prometheus.Gauge
	activeRooms   prometheus.Gauge
	roomLifetime  prometheus.Histogram

	framesReceived *prometheus.CounterVec
	frameSize      prometheus.Histogram
	framesRelayed  *prometheus.CounterVec
	fanout         prometheus.Histogram
	framesDropped  *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector and registers Go runtime metrics.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,
		activeClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "sync_active_clients",
			Help: "Number of connected websocket clients",
		}),
		activeRooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "sync_active_rooms",
			Help: "Number of rooms with at least one member",
		}),
		roomLifetime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sync_room_lifetime_seconds",
			Help:    "Time between a room's first join and its last leave",
			Buckets: prometheus.ExponentialBuckets(10, 3, 9), // 10s to ~18h
		}),
		framesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_frames_received_total",
			Help: "Inbound websocket frames by event",
		}, []string{"event"}),
		frameSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sync_frame_size_bytes",
			Help:    "Size of inbound websocket frames",
			Buckets: prometheus.ExponentialBuckets(64, 2, 9), // 64B to 16KB
		}),
		framesRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_frames_relayed_total",
			Help: "sync_action frames relayed, by action type",
		}, []string{"type"}),
		fanout: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sync_relay_fanout",
			Help:    "Recipients per relayed frame",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		framesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_frames_dropped_total",
			Help: "Inbound frames not acted on, by reason",
		}, []string{"reason"}),
	}
}

func (c *PrometheusCollector) ClientConnected() { c.activeClients.Inc() }
func (c *PrometheusCollector) ClientDisconnected() { c.activeClients.Dec() }
func (c *PrometheusCollector) RoomCreated() { c.activeRooms.Inc() }

func (c *PrometheusCollector) RoomDestroyed(lifetime time.Duration) {
	c.activeRooms.Dec()
	c.roomLifetime.Observe(lifetime.Seconds())
}

func (c *PrometheusCollector) FrameReceived(event string, sizeBytes int) {
	c.framesReceived.WithLabelValues(event).Inc()
	c.frameSize.Observe(float64(sizeBytes))
}

func (c *PrometheusCollector) FrameRelayed(actionType string, recipients int) {
	c.framesRelayed.WithLabelValues(actionType).Inc()
	c.fanout.Observe(float64(recipients))
}

func (c *PrometheusCollector) FrameDropped(reason string) {
	c.framesDropped.WithLabelValues(reason).Inc()
}

func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Noop discards everything.
type Noop struct{}

func (Noop) ClientConnected() {}
func (Noop) ClientDisconnected() {}
func (Noop) RoomCreated() {}
func (Noop) RoomDestroyed(time.Duration) {}
func (Noop) FrameReceived(string, int) {}
func (Noop) FrameRelayed(string, int) {}
func (Noop) FrameDropped(string) {}
func (Noop) Handler() http.Handler { return http.NotFoundHandler() }
