package roadusage

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector exposes matching progress as prometheus metrics
type Collector struct {
	reg *prometheus.Registry

	TripsRead     prometheus.Counter
	TripsAccepted prometheus.Counter
	TripsSkipped  *prometheus.CounterVec // reason label

	PathSearchDuration prometheus.Histogram
	ErrorRatio         prometheus.Histogram

	Workers prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TripsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadusage_trips_read_total",
			Help: "Total trip rows read.",
		}),
		TripsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roadusage_trips_accepted_total",
			Help: "Total trips matched to the network and counted.",
		}),
		TripsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roadusage_trips_skipped_total",
			Help: "Total trips skipped.",
		}, []string{"reason"}),
		PathSearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roadusage_path_search_duration_seconds",
			Help:    "Duration of shortest path search.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 18),
		}),
		ErrorRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roadusage_path_distance_error_ratio",
			Help:    "Relative difference between path length and reported trip distance.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roadusage_workers",
			Help: "Number of matching workers.",
		}),
	}

	reg.MustRegister(
		c.TripsRead, c.TripsAccepted, c.TripsSkipped,
		c.PathSearchDuration, c.ErrorRatio, c.Workers,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Gather returns current state of registry
func (c *Collector) Gather() (map[string]float64, error) {
	families, err := c.reg.Gather()
	if err != nil {
		return nil, err
	}
	values := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			name := family.GetName()
			for _, label := range metric.GetLabel() {
				name += "{" + label.GetName() + "=" + label.GetValue() + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				values[name] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[name] = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				values[name] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return values, nil
}

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	logger.Info("Metrics listening", zap.String("addr", addr))
	return srv
}
