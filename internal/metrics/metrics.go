// Package metrics holds the Prometheus collectors for the strata service.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matthewbaird/strata/internal/event"
)

const namespace = "strata"

// Metrics groups every collector on its own registry so tests can build
// independent instances.
type Metrics struct {
	registry *prometheus.Registry

	DomainEvents   *prometheus.CounterVec
	LevyMonthly    prometheus.Histogram
	Tickets        *prometheus.CounterVec
	RSVPs          *prometheus.CounterVec
	Attendees      *prometheus.CounterVec
	EventOccupancy *prometheus.GaugeVec
	Documents      prometheus.Counter
	DocumentBytes  prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		DomainEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events dispatched on the bus, by type.",
		}, []string{"event_type"}),
		LevyMonthly: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "levy",
			Name:      "monthly_amount",
			Help:      "Quoted monthly levy amounts.",
			Buckets:   prometheus.LinearBuckets(200, 100, 10),
		}),
		Tickets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "tickets_total",
			Help:      "Maintenance tickets issued, by type, final urgency and escalation.",
		}, []string{"request_type", "urgency", "escalated"}),
		RSVPs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rsvp",
			Name:      "requests_total",
			Help:      "RSVP requests allocated, by event and outcome.",
		}, []string{"event_id", "status"}),
		Attendees: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rsvp",
			Name:      "attendees_total",
			Help:      "Attendees across RSVP requests, by event and outcome.",
		}, []string{"event_id", "status"}),
		EventOccupancy: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rsvp",
			Name:      "occupancy_ratio",
			Help:      "Confirmed RSVPs divided by capacity, per event.",
		}, []string{"event_id"}),
		Documents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "stored_total",
			Help:      "Documents accepted by the sink.",
		}),
		DocumentBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "stored_bytes_total",
			Help:      "Bytes accepted by the sink.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry exposes the underlying registry, for registering extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// HandleEvent updates the domain collectors from a bus event.
func (m *Metrics) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	m.DomainEvents.WithLabelValues(evt.EventType).Inc()

	switch evt.EventType {
	case event.TypeLevyCalculated:
		var p event.LevyCalculatedPayload
		if err := decode(evt, &p); err != nil {
			return err
		}
		m.LevyMonthly.Observe(p.MonthlyLevy)
	case event.TypeTicketIssued:
		var p event.TicketIssuedPayload
		if err := decode(evt, &p); err != nil {
			return err
		}
		m.Tickets.WithLabelValues(p.RequestType, p.Urgency, strconv.FormatBool(p.AutoEscalated)).Inc()
	case event.TypeRSVPConfirmed, event.TypeRSVPWaitlisted:
		var p event.RSVPPayload
		if err := decode(evt, &p); err != nil {
			return err
		}
		status := "confirmed"
		if evt.EventType == event.TypeRSVPWaitlisted {
			status = "waitlisted"
		}
		m.RSVPs.WithLabelValues(p.EventID, status).Inc()
		m.Attendees.WithLabelValues(p.EventID, status).Add(float64(p.Attendees))
		if p.MaxCapacity > 0 {
			m.EventOccupancy.WithLabelValues(p.EventID).Set(float64(p.CurrentRSVPs) / float64(p.MaxCapacity))
		}
	case event.TypeDocumentStored:
		var p event.DocumentStoredPayload
		if err := decode(evt, &p); err != nil {
			return err
		}
		m.Documents.Inc()
		m.DocumentBytes.Add(float64(p.Size))
	}
	return nil
}

func decode(evt event.DomainEvent, v any) error {
	if err := json.Unmarshal(evt.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", evt.EventType, err)
	}
	return nil
}
