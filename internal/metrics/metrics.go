package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the token lifecycle.
type Metrics struct {
	TokensIssuedTotal   *prometheus.CounterVec
	VerificationsTotal  *prometheus.CounterVec
	RevocationsTotal    *prometheus.CounterVec
	ReuseDetectedTotal  prometheus.Counter
	DenylistPrunedTotal prometheus.Counter
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// New registers the collectors on the default registry. Registration happens
// once; later calls return the same instance.
func New() *Metrics {
	once.Do(func() {
		defaultMetrics = &Metrics{
			TokensIssuedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "oauth_tokens_issued_total",
					Help: "Total number of tokens issued",
				},
				[]string{"token_type", "grant_type"},
			),
			VerificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "oauth_token_verifications_total",
					Help: "Total number of token verifications",
				},
				[]string{"outcome"}, // valid, malformed, signature_invalid, expired, revoked, audience_mismatch
			),
			RevocationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "oauth_tokens_revoked_total",
					Help: "Total number of tokens revoked",
				},
				[]string{"hint"}, // access_token, refresh_token, unknown
			),
			ReuseDetectedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "oauth_refresh_reuse_detected_total",
					Help: "Total number of refresh token reuses that triggered family revocation",
				},
			),
			DenylistPrunedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "oauth_denylist_pruned_total",
					Help: "Total number of expired denylist entries removed by the sweeper",
				},
			),
		}
	})
	return defaultMetrics
}
