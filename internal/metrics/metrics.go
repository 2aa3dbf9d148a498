// Package metrics exports onboarding counters to Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mohsinsiddi/w3connect/internal/onboard"
)

// Outcome label values.
const (
	OutcomeSigned  = "signed"
	OutcomeError   = "error"
	OutcomeStopped = "stopped"
)

// Metrics records onboarding attempts. It implements onboard.Observer.
type Metrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec

	mu      sync.Mutex
	pending map[string]pendingAttempt
	now     func() time.Time
}

type pendingAttempt struct {
	wallet  string
	started time.Time
}

// NewMetrics builds Metrics; a nil reg registers with the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "w3connect_onboarding_attempts_total",
			Help: "Onboarding attempts started",
		}, []string{"wallet"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "w3connect_onboarding_outcomes_total",
			Help: "Onboarding attempts finished, by outcome and error code",
		}, []string{"wallet", "outcome", "code"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "w3connect_onboarding_retries_total",
			Help: "Sign retries scheduled after a spurious rejection",
		}, []string{"wallet", "peer"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "w3connect_onboarding_duration_seconds",
			Help:    "Time from start to outcome",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"wallet", "outcome"}),
		pending: make(map[string]pendingAttempt),
		now:     time.Now,
	}
	reg.MustRegister(m.attempts, m.outcomes, m.retries, m.duration)
	return m
}

// StatusChanged implements onboard.Observer.
func (m *Metrics) StatusChanged(s onboard.Status) {
	if m == nil {
		return
	}
	wallet := labelOrModal(s.WalletID)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch s.Phase {
	case onboard.PhaseStarted:
		m.attempts.WithLabelValues(wallet).Inc()
		m.pending[s.Attempt] = pendingAttempt{wallet: wallet, started: m.now()}
	case onboard.PhaseInProgress:
		m.retries.WithLabelValues(wallet, labelOrUnknown(s.RetryTarget)).Inc()
	case onboard.PhaseSigned:
		m.finish(s.Attempt, wallet, OutcomeSigned, "")
	case onboard.PhaseError:
		code := ""
		if s.Err != nil {
			code = string(s.Err.Code)
		}
		m.finish(s.Attempt, wallet, OutcomeError, code)
	case onboard.PhaseIdle:
		// Idle carries no attempt id; whatever was still pending was stopped.
		for id, p := range m.pending {
			m.finish(id, p.wallet, OutcomeStopped, "")
		}
	}
}

func (m *Metrics) finish(attempt, wallet, outcome, code string) {
	m.outcomes.WithLabelValues(wallet, outcome, code).Inc()
	if p, ok := m.pending[attempt]; ok {
		m.duration.WithLabelValues(p.wallet, outcome).Observe(m.now().Sub(p.started).Seconds())
		delete(m.pending, attempt)
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func labelOrModal(wallet string) string {
	if wallet == "" {
		return "modal"
	}
	return wallet
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
