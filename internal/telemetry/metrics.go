package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/viscosim/internal/sim"
)

const namespace = "viscosim"

// Metrics exports pipeline stage timings and per-frame diagnostics. It
// satisfies both particles.StageObserver and sim.Observer.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	frames        prometheus.Counter
	frameCost     prometheus.Histogram
	simTime       prometheus.Gauge
	particles     prometheus.Gauge
	yielded       prometheus.Gauge
	neighbors     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time of one pipeline stage.",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"body", "stage"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_errors_total",
				Help:      "Pipeline stages that returned an error.",
			},
			[]string{"body", "stage"},
		),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames taken.",
		}),
		frameCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_cost_seconds",
			Help:      "Wall time of one frame.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 2, 14),
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulated_seconds",
			Help:      "Simulated time at the last frame.",
		}),
		particles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "particles",
			Help:      "Particles in the sampled body.",
		}),
		yielded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "yielded_particles",
			Help:      "Particles that yielded in the last plasticity pass.",
		}),
		neighbors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_neighbors",
			Help:      "Mean neighborhood size.",
		}),
	}

	m.registry.MustRegister(
		m.stageDuration, m.stageErrors, m.frames, m.frameCost,
		m.simTime, m.particles, m.yielded, m.neighbors,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveStage(body, stage string, elapsed time.Duration, err error) {
	m.stageDuration.WithLabelValues(body, stage).Observe(elapsed.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(body, stage).Inc()
	}
}

func (m *Metrics) OnFrame(f *sim.Frame) {
	if f.Index > 0 {
		m.frames.Inc()
		m.frameCost.Observe(f.Cost.Seconds())
	}
	m.simTime.Set(f.Time)
	m.particles.Set(float64(len(f.Positions)))
	m.yielded.Set(float64(f.Yielded))
	m.neighbors.Set(f.Neighborhood.Mean())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
