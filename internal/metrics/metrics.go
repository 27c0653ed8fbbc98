/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/acronis/go-appkit/lrucache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-refauth/internal/libinfo"
)

const PrometheusNamespace = "go_refauth"

const DefaultPrometheusLibInstanceLabel = "default"

// Labels that every collector is curried with.
const (
	PrometheusLibInstanceLabel = "lib_instance"
	PrometheusLibSourceLabel   = "lib_source"
)

// Sources of metrics. They are used as values of the lib_source label.
const (
	SourceAuthenticationHandler = "authentication_handler"
	SourceIntrospectionClient   = "introspection_client"
	SourceTokenCache            = "token_cache"
)

// Error types of the outgoing HTTP requests.
const (
	HTTPRequestErrorDo                   = "do_request_error"
	HTTPRequestErrorDecodeBody           = "decode_body_error"
	HTTPRequestErrorUnexpectedStatusCode = "unexpected_status_code"
)

// Values of the status label of the token introspections counter.
const (
	TokenIntrospectionStatusActive    = "active"
	TokenIntrospectionStatusNotActive = "not_active"
	TokenIntrospectionStatusError     = "error"
	TokenIntrospectionStatusCacheHit  = "cache_hit"
	TokenIntrospectionStatusSkipped   = "skipped"
)

var curriedLabelNames = []string{PrometheusLibInstanceLabel, PrometheusLibSourceLabel}

var requestDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	registered     *PrometheusMetrics
	registeredOnce sync.Once
)

// PrometheusMetrics holds the collectors of the library.
// Instances returned by GetPrometheusMetrics are already curried with the instance and source labels.
type PrometheusMetrics struct {
	HTTPClientRequestDuration *prometheus.HistogramVec
	TokenIntrospectionsTotal  *prometheus.CounterVec
	SharedIntrospectionsTotal *prometheus.CounterVec
	TokenClaimsCache          *lrucache.PrometheusMetrics
}

// GetPrometheusMetrics returns collectors for the given library instance and source.
// Collectors are created and registered in the default registry once per process.
func GetPrometheusMetrics(instance string, source string) *PrometheusMetrics {
	registeredOnce.Do(func() {
		registered = newPrometheusMetrics()
		prometheus.MustRegister(registered.collectors()...)
		registered.TokenClaimsCache.MustRegister()
	})
	if instance == "" {
		instance = DefaultPrometheusLibInstanceLabel
	}
	labels := prometheus.Labels{PrometheusLibInstanceLabel: instance, PrometheusLibSourceLabel: source}
	return &PrometheusMetrics{
		HTTPClientRequestDuration: registered.HTTPClientRequestDuration.MustCurryWith(labels).(*prometheus.HistogramVec),
		TokenIntrospectionsTotal:  registered.TokenIntrospectionsTotal.MustCurryWith(labels),
		SharedIntrospectionsTotal: registered.SharedIntrospectionsTotal.MustCurryWith(labels),
		TokenClaimsCache:          registered.TokenClaimsCache.MustCurryWith(labels),
	}
}

func withCurried(names ...string) []string {
	return append(append([]string{}, curriedLabelNames...), names...)
}

func constLabels() prometheus.Labels {
	return prometheus.Labels{"lib_version": libinfo.GetLibVersion()}
}

func newPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		HTTPClientRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   PrometheusNamespace,
			Name:        "http_client_request_duration_seconds",
			Help:        "Duration of the requests to the discovery and introspection endpoints.",
			Buckets:     requestDurationBuckets,
			ConstLabels: constLabels(),
		}, withCurried("method", "url", "status_code", "error")),

		TokenIntrospectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "token_introspections_total",
			Help:        "Number of reference token authentications by outcome.",
			ConstLabels: constLabels(),
		}, withCurried("status")),

		SharedIntrospectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "shared_introspections_total",
			Help:        "Number of authentications that joined an introspection already in flight for the same token.",
			ConstLabels: constLabels(),
		}, withCurried()),

		TokenClaimsCache: lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
			Namespace:         PrometheusNamespace + "_token_claims",
			ConstLabels:       constLabels(),
			CurriedLabelNames: curriedLabelNames,
		}),
	}
}

func (pm *PrometheusMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{pm.HTTPClientRequestDuration, pm.TokenIntrospectionsTotal, pm.SharedIntrospectionsTotal}
}

// ObserveHTTPClientRequest records the duration of the outgoing request.
// Zero status code means the response was not received. Empty errorType means success.
func (pm *PrometheusMetrics) ObserveHTTPClientRequest(
	method string, targetURL string, statusCode int, elapsed time.Duration, errorType string,
) {
	pm.HTTPClientRequestDuration.WithLabelValues(
		method, targetURL, strconv.Itoa(statusCode), errorType).Observe(elapsed.Seconds())
}

func (pm *PrometheusMetrics) IncTokenIntrospectionsTotal(status string) {
	pm.TokenIntrospectionsTotal.WithLabelValues(status).Inc()
}

func (pm *PrometheusMetrics) IncSharedIntrospectionsTotal() {
	pm.SharedIntrospectionsTotal.WithLabelValues().Inc()
}
