package ingapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification results recorded in ingsig_response_verifications_total.
const (
	VerificationValid   = "valid"
	VerificationInvalid = "invalid"
	VerificationError   = "error"
)

// Metrics holds the flow's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	verificationsTotal *prometheus.CounterVec
	flowsTotal         *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingsig_requests_total",
				Help: "Total number of signed requests by step and response code",
			},
			[]string{"step", "code"},
		),
		verificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingsig_response_verifications_total",
				Help: "Total number of response signature verifications by result",
			},
			[]string{"result"},
		),
		flowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingsig_flows_total",
				Help: "Total number of authorization flows by outcome",
			},
			[]string{"outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingsig_request_duration_seconds",
				Help:    "Duration of signed requests by step",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),
	}
}

// observeRequest records one request. code is 0 for transport failures.
func (m *Metrics) observeRequest(step Step, code int, d time.Duration) {
	if m == nil {
		return
	}

	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}

	m.requestsTotal.WithLabelValues(string(step), label).Inc()
	m.requestDuration.WithLabelValues(string(step)).Observe(d.Seconds())
}

func (m *Metrics) observeVerification(result string) {
	if m == nil {
		return
	}

	m.verificationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeFlow(outcome string) {
	if m == nil {
		return
	}

	m.flowsTotal.WithLabelValues(outcome).Inc()
}
