package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder abstracts metric recording so services never depend on
// Prometheus directly. Metrics and NoopMetrics both implement it.
type Recorder interface {
	// Authorization flow
	RecordAuthorizationRequest(responseType, result string)
	RecordAuthorizationDecision(decision string)

	// Grants and tokens
	RecordGrantIssued(success bool)
	RecordGrantRedemption(result string)
	RecordTokenIssued(grantType string, duration time.Duration)
	RecordTokenRevoked(reason string)
	RecordTokenValidation(result string)

	// Client registry
	RecordClientRevoked(tokensRevoked int64)

	// HTTP
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncHTTPInFlight()
	DecHTTPInFlight()
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	AuthorizationRequestsTotal  *prometheus.CounterVec
	AuthorizationDecisionsTotal *prometheus.CounterVec

	GrantsIssuedTotal     *prometheus.CounterVec
	GrantRedemptionsTotal *prometheus.CounterVec

	TokensIssuedTotal       *prometheus.CounterVec
	TokensRevokedTotal      *prometheus.CounterVec
	TokenValidationTotal    *prometheus.CounterVec
	TokenGenerationDuration *prometheus.HistogramVec

	ClientsRevokedTotal      prometheus.Counter
	ClientTokensRevokedTotal prometheus.Counter

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag. If disabled, returns
// NoopMetrics with zero overhead. Uses sync.Once so Prometheus metrics
// are only registered once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		AuthorizationRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_requests_total",
				Help: "Total number of authorization endpoint requests",
			},
			[]string{"response_type", "result"}, // result: accepted, error, redirect_error
		),
		AuthorizationDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_authorization_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"decision"}, // granted, denied
		),

		GrantsIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_grants_issued_total",
				Help: "Total number of access grants issued",
			},
			[]string{"result"}, // success, error
		),
		GrantRedemptionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_grant_redemptions_total",
				Help: "Total number of access grant redemption attempts",
			},
			[]string{"result"}, // success, redeemed, expired, invalid
		),

		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_issued_total",
				Help: "Total number of access tokens issued",
			},
			[]string{"grant_type"}, // authorization_code, password, none, assertion
		),
		TokensRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_tokens_revoked_total",
				Help: "Total number of access tokens revoked",
			},
			[]string{"reason"}, // user_request, admin, client_revoked
		),
		TokenValidationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oauth_token_validation_total",
				Help: "Total number of bearer token validations",
			},
			[]string{"result"}, // valid, invalid, expired, revoked
		),
		TokenGenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oauth_token_generation_duration_seconds",
				Help:    "Time taken to issue an access token",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"grant_type"},
		),

		ClientsRevokedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_clients_revoked_total",
				Help: "Total number of clients revoked",
			},
		),
		ClientTokensRevokedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "oauth_client_tokens_revoked_total",
				Help: "Total number of tokens revoked by client revocation cascades",
			},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				Buckets: []float64{
					0.001, 0.005, 0.010, 0.025, 0.050,
					0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
				},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being served",
			},
		),
	}
}

func (m *Metrics) RecordAuthorizationRequest(responseType, result string) {
	m.AuthorizationRequestsTotal.WithLabelValues(responseType, result).Inc()
}

func (m *Metrics) RecordAuthorizationDecision(decision string) {
	m.AuthorizationDecisionsTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordGrantIssued(success bool) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.GrantsIssuedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordGrantRedemption(result string) {
	m.GrantRedemptionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTokenIssued(grantType string, duration time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(grantType).Inc()
	m.TokenGenerationDuration.WithLabelValues(grantType).Observe(duration.Seconds())
}

func (m *Metrics) RecordTokenRevoked(reason string) {
	m.TokensRevokedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordClientRevoked(tokensRevoked int64) {
	m.ClientsRevokedTotal.Inc()
	m.ClientTokensRevokedTotal.Add(float64(tokensRevoked))
}

func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) IncHTTPInFlight() { m.HTTPRequestsInFlight.Inc() }
func (m *Metrics) DecHTTPInFlight() { m.HTTPRequestsInFlight.Dec() }
