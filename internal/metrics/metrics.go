// Package metrics exposes Prometheus counters for the credential lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credbroker"

// Result label values.
const (
	ResultSuccess       = "success"
	ResultStateError    = "state_error"
	ResultProviderError = "provider_error"
	ResultError         = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	stateVerifications *prometheus.CounterVec
	oauthCallbacks     *prometheus.CounterVec
	tokenRefreshes     *prometheus.CounterVec
	revocations        *prometheus.CounterVec
	cryptoFailures     prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		stateVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_verifications_total",
			Help:      "OAuth state verifications by result.",
		}, []string{"result"}),
		oauthCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_callbacks_total",
			Help:      "OAuth callbacks handled by provider and result.",
		}, []string{"provider", "result"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Google token rotations persisted by result.",
		}, []string{"result"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Provider side token revocations by result.",
		}, []string{"result"}),
		cryptoFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crypto_failures_total",
			Help:      "Stored secrets that failed to decrypt.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stateVerifications,
		m.oauthCallbacks,
		m.tokenRefreshes,
		m.revocations,
		m.cryptoFailures,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) StateVerified(result string) {
	if m != nil {
		m.stateVerifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Callback(provider, result string) {
	if m != nil {
		m.oauthCallbacks.WithLabelValues(provider, result).Inc()
	}
}

func (m *Metrics) Refresh(result string) {
	if m != nil {
		m.tokenRefreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Revocation(result string) {
	if m != nil {
		m.revocations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) CryptoFailure() {
	if m != nil {
		m.cryptoFailures.Inc()
	}
}
