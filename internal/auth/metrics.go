// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision results recorded on thingful_auth_decisions_total.
const (
	resultAllowed      = "allowed"
	resultDenied       = "denied"
	resultMissingToken = "missing_token"
	resultError        = "error"
)

// Registration results recorded on thingful_registrations_total.
const (
	registrationCreated  = "created"
	registrationRejected = "rejected"
	registrationTaken    = "username_taken"
	registrationError    = "error"
)

// Metrics holds the Prometheus collectors for authentication. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	decisions     *prometheus.CounterVec
	registrations *prometheus.CounterVec
	hashDuration  *prometheus.HistogramVec
}

// NewMetrics creates the auth collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "thingful_auth_decisions_total",
			Help: "Total number of Basic auth decisions by result",
		}, []string{"result"}),
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "thingful_registrations_total",
			Help: "Total number of registration attempts by result",
		}, []string{"result"}),
		hashDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thingful_password_hash_duration_seconds",
			Help:    "Histogram of bcrypt hash and verify latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
	}
}

func (m *Metrics) recordDecision(result string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(result).Inc()
}

func (m *Metrics) recordRegistration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) observeHash(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.hashDuration.WithLabelValues(op).Observe(d.Seconds())
}
