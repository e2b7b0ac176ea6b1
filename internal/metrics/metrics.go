// Package metrics exposes booking, generation and listing counters for Prometheus.
//
//	scheduler_booking_requests_total{op,outcome}  claim/transfer results
//	scheduler_booking_duration_seconds{op}        time spent in the booking engine
//	scheduler_slots_generated_total               new slots persisted by generation
//	scheduler_slots_listed_total                  slots returned by the listing endpoint
//	scheduler_rate_limited_total                  requests rejected by the rate limiter
//
// Every Collector owns its registry, so tests can create as many as they like.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	bookingRequests *prometheus.CounterVec
	bookingDuration *prometheus.HistogramVec
	slotsGenerated  prometheus.Counter
	slotsListed     prometheus.Counter
	rateLimited     prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		bookingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_booking_requests_total",
			Help: "Booking engine calls by operation and outcome",
		}, []string{"op", "outcome"}),
		bookingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_booking_duration_seconds",
			Help:    "Booking engine latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_slots_generated_total",
			Help: "Slots created by availability expansion",
		}),
		slotsListed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_slots_listed_total",
			Help: "Available slots returned to callers",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}

	c.registry.MustRegister(
		c.bookingRequests,
		c.bookingDuration,
		c.slotsGenerated,
		c.slotsListed,
		c.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveBooking records one claim or transfer with its outcome label.
func (c *Collector) ObserveBooking(op, outcome string, took time.Duration) {
	c.bookingRequests.WithLabelValues(op, outcome).Inc()
	c.bookingDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (c *Collector) AddGenerated(n int) {
	if n > 0 {
		c.slotsGenerated.Add(float64(n))
	}
}

func (c *Collector) AddListed(n int) {
	if n > 0 {
		c.slotsListed.Add(float64(n))
	}
}

func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
