// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeServerError = "server_error"
	OutcomeRateLimited = "rate_limited"
	OutcomeBlocked     = "blocked"
	OutcomeUnexpected  = "unexpected_status"
	OutcomeNetwork     = "network_error"
	OutcomeExhausted   = "exhausted"
)

// Record stages.
const (
	StageExtracted = "extracted"
	StageFiltered  = "filtered"
	StageExported  = "exported"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	FetchRequests *prometheus.CounterVec
	Records       *prometheus.CounterVec
	CookieMints   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the counters on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration on the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listingwatch_fetch_requests_total",
			Help: "Listing page requests by outcome",
		}, []string{"outcome"}),
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listingwatch_records_total",
			Help: "Records passing each pipeline stage",
		}, []string{"stage"}),
		CookieMints: f.NewCounterVec(prometheus.CounterOpts{
			Name: "listingwatch_cookie_mints_total",
			Help: "Browser cookie re-mint attempts by result",
		}, []string{"result"}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddRecords(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Records.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) ObserveMint(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.CookieMints.WithLabelValues(result).Inc()
}

// Handler serves the registry the metrics were created on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
