package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashboard"

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	MessagesSentTotal     *prometheus.CounterVec
	MessagesFailedTotal   *prometheus.CounterVec
	StatusUpdatesTotal    *prometheus.CounterVec
	CSVRowsTotal          *prometheus.CounterVec
	CampaignsCreatedTotal prometheus.Counter
	SchedulerRunsTotal    prometheus.Counter
	EventsDroppedTotal    prometheus.Counter
	ActiveSubscribers     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered on a private
// registry, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_sent_total",
				Help:      "Total number of messages accepted by the provider",
			},
			[]string{"source"},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_failed_total",
				Help:      "Total number of messages that failed to send",
			},
			[]string{"source"},
		),
		StatusUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_updates_total",
				Help:      "Delivery receipts applied, by resulting status",
			},
			[]string{"status"},
		),
		CSVRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "csv_rows_total",
				Help:      "Recipient CSV rows parsed, by result",
			},
			[]string{"result"},
		),
		CampaignsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaigns_created_total",
			Help:      "Total number of campaigns created",
		}),
		SchedulerRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Total number of scheduler iterations",
		}),
		EventsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber buffer was full",
		}),
		ActiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Number of active event subscribers",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.StatusUpdatesTotal,
		m.CSVRowsTotal,
		m.CampaignsCreatedTotal,
		m.SchedulerRunsTotal,
		m.EventsDroppedTotal,
		m.ActiveSubscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MessageSent(source string) {
	if m == nil {
		return
	}
	m.MessagesSentTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) MessageFailed(source string) {
	if m == nil {
		return
	}
	m.MessagesFailedTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) StatusUpdated(status string) {
	if m == nil {
		return
	}
	m.StatusUpdatesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) CSVParsed(valid, invalid int) {
	if m == nil {
		return
	}
	m.CSVRowsTotal.WithLabelValues("valid").Add(float64(valid))
	m.CSVRowsTotal.WithLabelValues("invalid").Add(float64(invalid))
}

func (m *Metrics) CampaignCreated() {
	if m == nil {
		return
	}
	m.CampaignsCreatedTotal.Inc()
}

func (m *Metrics) SchedulerRun() {
	if m == nil {
		return
	}
	m.SchedulerRunsTotal.Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDroppedTotal.Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.ActiveSubscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.ActiveSubscribers.Dec()
}
