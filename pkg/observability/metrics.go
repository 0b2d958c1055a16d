package observability

import (
	"context"

	"github.com/aretw0/coherence/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one node.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	MessagesSent  *prometheus.CounterVec
	MessagesRecv  *prometheus.CounterVec
	SendFailures  *prometheus.CounterVec
	HandlerErrors *prometheus.CounterVec
	FaultDuration *prometheus.HistogramVec
	FaultsNoData  prometheus.Counter
	FaultsFailed  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coherence_page_transitions_total",
				Help: "Page tag transitions by source tag, target tag and cause",
			},
			[]string{"from", "to", "cause"},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coherence_messages_sent_total",
				Help: "Protocol messages handed to the transport",
			},
			[]string{"kind"},
		),
		MessagesRecv: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coherence_messages_received_total",
				Help: "Protocol messages received from the peer",
			},
			[]string{"kind"},
		),
		SendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coherence_send_failures_total",
				Help: "Protocol messages the transport failed to send",
			},
			[]string{"kind"},
		),
		HandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coherence_handler_errors_total",
				Help: "Inbound messages whose handler returned an error",
			},
			[]string{"kind"},
		),
		FaultDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coherence_fault_duration_seconds",
				Help:    "Duration of local faults including the peer round trip",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"access"},
		),
		FaultsNoData: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coherence_faults_no_data_total",
			Help: "Faults answered by a peer that had no valid copy",
		}),
		FaultsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coherence_faults_failed_total",
			Help: "Faults that returned an error",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Transitions,
			m.MessagesSent,
			m.MessagesRecv,
			m.SendFailures,
			m.HandlerErrors,
			m.FaultDuration,
			m.FaultsNoData,
			m.FaultsFailed,
		)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.From.String(), e.To.String(), string(e.Cause)).Inc()
		},
		OnMessageSent: func(_ context.Context, e *domain.MessageEvent) {
			if e.Err != nil {
				m.SendFailures.WithLabelValues(e.Kind).Inc()
				return
			}
			m.MessagesSent.WithLabelValues(e.Kind).Inc()
		},
		OnMessageReceived: func(_ context.Context, e *domain.MessageEvent) {
			m.MessagesRecv.WithLabelValues(e.Kind).Inc()
		},
		OnHandlerError: func(_ context.Context, e *domain.MessageEvent) {
			m.HandlerErrors.WithLabelValues(e.Kind).Inc()
		},
		OnFault: func(_ context.Context, e *domain.FaultEvent) {
			if e.Err != nil {
				m.FaultsFailed.Inc()
				return
			}
			if e.NoData {
				m.FaultsNoData.Inc()
			}
			m.FaultDuration.WithLabelValues(e.Kind.String()).Observe(e.Duration.Seconds())
		},
	}
}
