package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics records API, realtime and persistence activity for the client process.
type ClientMetrics struct {
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	realtimeEvents  *prometheus.CounterVec
	reconnects      prometheus.Counter
	persistSaves    *prometheus.CounterVec
}

// NewClientMetrics registers the client metrics on the provided registerer.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		return &ClientMetrics{}
	}
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "buildmatch_api_request_duration_seconds",
		Help:    "Duration of API requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buildmatch_api_requests_total",
		Help: "API requests by operation and outcome.",
	}, []string{"operation", "outcome"})
	realtimeEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buildmatch_realtime_events_total",
		Help: "Realtime events observed by event name.",
	}, []string{"event"})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buildmatch_realtime_reconnect_attempts_total",
		Help: "Realtime reconnection attempts.",
	})
	persistSaves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "buildmatch_persistence_saves_total",
		Help: "Snapshot saves by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(requestDuration, requests, realtimeEvents, reconnects, persistSaves)
	return &ClientMetrics{
		requestDuration: requestDuration,
		requests:        requests,
		realtimeEvents:  realtimeEvents,
		reconnects:      reconnects,
		persistSaves:    persistSaves,
	}
}

// ObserveRequest records the duration and outcome of one API call.
func (c *ClientMetrics) ObserveRequest(operation string, duration time.Duration, err error) {
	if c == nil || c.requestDuration == nil {
		return
	}
	op := normalizeLabel(operation)
	c.requestDuration.WithLabelValues(op).Observe(duration.Seconds())
	c.requests.WithLabelValues(op, outcome(err)).Inc()
}

// IncRealtimeEvent counts a realtime event by name.
func (c *ClientMetrics) IncRealtimeEvent(event string) {
	if c == nil || c.realtimeEvents == nil {
		return
	}
	c.realtimeEvents.WithLabelValues(normalizeLabel(event)).Inc()
}

func (c *ClientMetrics) IncReconnect() {
	if c == nil || c.reconnects == nil {
		return
	}
	c.reconnects.Inc()
}

// ObserveSave counts a snapshot save.
func (c *ClientMetrics) ObserveSave(err error) {
	if c == nil || c.persistSaves == nil {
		return
	}
	c.persistSaves.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
