package router

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitaminmoo/braceletctl/internal/protocol"
)

// Metrics counts router traffic. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Frames       *prometheus.CounterVec
	DecodeErrors prometheus.Counter
	Dropped      prometheus.Counter
	Timeouts     prometheus.Counter
	PendingGauge prometheus.Gauge
}

// NewMetrics creates the router metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "braceletctl_frames_total",
			Help: "Inbound frames by opcode.",
		}, []string{"opcode"}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braceletctl_decode_errors_total",
			Help: "Inbound frames that failed to parse or decode.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braceletctl_dropped_frames_total",
			Help: "Inbound frames with no pending request or subscriber.",
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braceletctl_request_timeouts_total",
			Help: "Requests that timed out.",
		}),
		PendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "braceletctl_pending_requests",
			Help: "Requests currently in flight.",
		}),
	}
	reg.MustRegister(m.Frames, m.DecodeErrors, m.Dropped, m.Timeouts, m.PendingGauge)
	return m
}

func (m *Metrics) frame(op protocol.Opcode) {
	if m != nil {
		m.Frames.WithLabelValues(op.String()).Inc()
	}
}

func (m *Metrics) decodeError() {
	if m != nil {
		m.DecodeErrors.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) timeout() {
	if m != nil {
		m.Timeouts.Inc()
	}
}

func (m *Metrics) pending(delta float64) {
	if m != nil {
		m.PendingGauge.Add(delta)
	}
}
