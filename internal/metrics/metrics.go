// Package metrics exposes Prometheus instrumentation for the sampler and the
// HTTP API. When metrics are disabled every recorder call is a no-op.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geotrack"

// Recorder is the full instrumentation surface used by the daemon.
type Recorder interface {
	FixReceived()
	FixDiscarded()
	ReadingStored()
	StoreFailed()
	ObserveRequest(route string, status int, duration time.Duration)
	GaugeFunc(name, help string, fn func() float64)
	Enabled() bool
	Handler() http.Handler
}

// Provider records metrics into its own registry so several providers can
// coexist in one process.
type Provider struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	fixes           *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New returns a Prometheus-backed Recorder, or a no-op one when disabled.
func New(enabled bool) Recorder {
	if !enabled {
		return noop{}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Provider{
		registry: reg,
		factory:  f,

		fixes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_total",
			Help:      "Location fixes received, by outcome.",
		}, []string{"outcome"}),

		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status class.",
		}, []string{"route", "status"}),

		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (p *Provider) FixReceived()   { p.fixes.WithLabelValues("received").Inc() }
func (p *Provider) FixDiscarded()  { p.fixes.WithLabelValues("discarded").Inc() }
func (p *Provider) ReadingStored() { p.fixes.WithLabelValues("stored").Inc() }
func (p *Provider) StoreFailed()   { p.fixes.WithLabelValues("store_failed").Inc() }

// ObserveRequest records one completed HTTP request.
func (p *Provider) ObserveRequest(route string, status int, duration time.Duration) {
	p.requestsTotal.WithLabelValues(route, statusClass(status)).Inc()
	p.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// GaugeFunc registers a gauge whose value is read from fn at scrape time.
func (p *Provider) GaugeFunc(name, help string, fn func() float64) {
	p.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

func (p *Provider) Enabled() bool { return true }

// Handler serves the provider's registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

type noop struct{}

func (noop) FixReceived()                              {}
func (noop) FixDiscarded()                             {}
func (noop) ReadingStored()                            {}
func (noop) StoreFailed()                              {}
func (noop) ObserveRequest(string, int, time.Duration) {}
func (noop) GaugeFunc(string, string, func() float64)  {}
func (noop) Enabled() bool                             { return false }
func (noop) Handler() http.Handler                     { return http.NotFoundHandler() }
