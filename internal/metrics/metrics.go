package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveRoutes prometheus.Gauge
	RefreshTicks prometheus.Counter

	RouteLoads        *prometheus.CounterVec // result label: ok|error|dropped
	PredictionFetches *prometheus.CounterVec // result label: ok|error
	ShapeLoads        *prometheus.CounterVec // result label: ok|empty|unrecognised|error

	CanvasPublished   prometheus.Counter
	CanvasPublishErrs prometheus.Counter
	NATSConnected     prometheus.Gauge
	WSClients         prometheus.Gauge

	LoadDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	RefreshInterval prometheus.Gauge // seconds
	StopsZoom       prometheus.Gauge
}

func NewCollector(refreshInterval time.Duration, stopsVisibleZoom int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_routes",
			Help: "Number of routes currently tracked on the map.",
		}),
		RefreshTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_refresh_ticks_total",
			Help: "Total refresh passes over the active routes.",
		}),
		RouteLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_route_loads_total",
			Help: "Route data loads by result.",
		}, []string{"result"}),
		PredictionFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_prediction_fetches_total",
			Help: "Stop prediction fetches by result.",
		}, []string{"result"}),
		ShapeLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_shape_loads_total",
			Help: "Route shape loads by result.",
		}, []string{"result"}),
		CanvasPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_canvas_published_total",
			Help: "Total canvas operations published to NATS.",
		}),
		CanvasPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_canvas_publish_errors_total",
			Help: "Total canvas publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_websocket_clients",
			Help: "Number of connected map renderers.",
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_route_load_duration_seconds",
			Help:    "Duration of a route data load including fetches.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a canvas operation.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_refresh_interval_seconds",
			Help: "Vehicle and prediction refresh interval in seconds.",
		}),
		StopsZoom: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_stops_visible_zoom",
			Help: "Zoom level at which stop layers are attached.",
		}),
	}

	reg.MustRegister(
		c.ActiveRoutes, c.RefreshTicks,
		c.RouteLoads, c.PredictionFetches, c.ShapeLoads,
		c.CanvasPublished, c.CanvasPublishErrs, c.NATSConnected, c.WSClients,
		c.LoadDuration, c.PublishDuration,
		c.RefreshInterval, c.StopsZoom,
	)

	c.RefreshInterval.Set(refreshInterval.Seconds())
	c.StopsZoom.Set(float64(stopsVisibleZoom))

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
	return srv
}
