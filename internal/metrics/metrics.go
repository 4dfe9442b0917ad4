package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "technews_auth"

// Metrics holds the key lifecycle collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	keysCreated         *prometheus.CounterVec
	malformedStoredKeys prometheus.Counter
	tokensIssued        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		keysCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_created_total",
			Help:      "Number of signing keys created",
		}, []string{"algorithm"}),
		malformedStoredKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_stored_keys_total",
			Help:      "Number of stored keys skipped because they could not be reconstructed",
		}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Number of access tokens issued",
		}, []string{"algorithm"}),
	}
	reg.MustRegister(m.keysCreated, m.malformedStoredKeys, m.tokensIssued)
	return m
}

func (m *Metrics) KeyCreated(algorithm string) {
	if m == nil {
		return
	}
	m.keysCreated.WithLabelValues(algorithm).Inc()
}

func (m *Metrics) MalformedStoredKey() {
	if m == nil {
		return
	}
	m.malformedStoredKeys.Inc()
}

func (m *Metrics) TokenIssued(algorithm string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(algorithm).Inc()
}
