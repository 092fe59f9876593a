package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Andiquis/xQor3/internal/core/port"
)

const namespace = "xqor3"

// Login outcomes recorded by AuthMetrics.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeDisabled           = "disabled"
	OutcomeError              = "error"
	OutcomeConflict           = "conflict"
)

// AuthMetrics exposes authentication counters to Prometheus.
type AuthMetrics struct {
	loginAttempts *prometheus.CounterVec
	lockouts      prometheus.Counter
	registrations *prometheus.CounterVec
}

// NewAuthMetrics registers the auth counters, reusing collectors that are already registered.
func NewAuthMetrics(registerer prometheus.Registerer) (*AuthMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	loginAttempts, err := RegisterCollector(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	lockouts, err := RegisterCollector(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "account_lockouts_total",
		Help:      "Accounts locked after too many failed logins.",
	}))
	if err != nil {
		return nil, err
	}

	registrations, err := RegisterCollector(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Registration attempts partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{loginAttempts: loginAttempts, lockouts: lockouts, registrations: registrations}, nil
}

// RegisterCollector registers collector, returning the already registered instance on a duplicate.
func RegisterCollector[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return collector, nil
}

func (m *AuthMetrics) LoginAttempt(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) AccountLocked() {
	m.lockouts.Inc()
}

func (m *AuthMetrics) Registration(outcome string) {
	m.registrations.WithLabelValues(outcome).Inc()
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)
