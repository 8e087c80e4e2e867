// Package metrics exposes Prometheus counters for uploads, lifecycle
// transitions and HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dharsanguruparan/InvoiceDrop/internal/processing"
)

// Recorder owns a private registry so tests can build as many as they like.
type Recorder struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadedFiles    prometheus.Counter
	uploadedBytes    prometheus.Counter
	rejectedUploads  *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	processingTime   *prometheus.HistogramVec
}

var _ processing.Observer = (*Recorder)(nil)

// New registers every collector.
func New() *Recorder {
	m := &Recorder{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicedrop",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "invoicedrop",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "invoicedrop",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
		uploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "invoicedrop",
			Subsystem: "upload",
			Name:      "files_total",
			Help:      "Invoices accepted by the upload endpoint.",
		}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "invoicedrop",
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Bytes of accepted invoice files.",
		}),
		rejectedUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicedrop",
			Subsystem: "upload",
			Name:      "rejected_total",
			Help:      "Upload requests rejected, by reason.",
		}, []string{"reason"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invoicedrop",
			Subsystem: "invoice",
			Name:      "transitions_total",
			Help:      "Committed lifecycle transitions by target status.",
		}, []string{"status"}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "invoicedrop",
			Subsystem: "invoice",
			Name:      "processing_seconds",
			Help:      "Time from entering Processing to a terminal status.",
			Buckets:   []float64{1, 5, 10, 15, 20, 30, 45, 60},
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.uploadedFiles,
		m.uploadedBytes,
		m.rejectedUploads,
		m.transitionsTotal,
		m.processingTime,
	)
	return m
}

// Handler serves the exposition format.
func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Recorder) Registry() *prometheus.Registry { return m.registry }

// Middleware counts requests by chi route pattern so ids do not explode the
// label space.
func (m *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordUpload counts one accepted file.
func (m *Recorder) RecordUpload(size int64) {
	m.uploadedFiles.Inc()
	if size > 0 {
		m.uploadedBytes.Add(float64(size))
	}
}

// RecordRejection counts one rejected upload request.
func (m *Recorder) RecordRejection(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.rejectedUploads.WithLabelValues(reason).Inc()
}

// InvoiceChanged counts transitions and observes processing time.
func (m *Recorder) InvoiceChanged(_ context.Context, c processing.Change) {
	m.transitionsTotal.WithLabelValues(string(c.To)).Inc()
	inv := c.Invoice
	if c.To.Terminal() && inv.ProcessingStartTime != nil && inv.ProcessingEndTime != nil {
		m.processingTime.WithLabelValues(string(c.To)).Observe(inv.ProcessingEndTime.Sub(*inv.ProcessingStartTime).Seconds())
	}
}
