// Package obs concentra as métricas Prometheus da API.
package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "urbis_http_in_flight_requests",
		Help: "Requisições HTTP em andamento.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbis_http_requests_total",
			Help: "Total de requisições HTTP.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "urbis_http_request_duration_seconds",
			Help:    "Latência das requisições HTTP.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	requestAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbis_request_attempts_total",
			Help: "Tentativas feitas pelo wrapper de requisições, por contexto e resultado.",
		},
		[]string{"context", "outcome"},
	)

	orphansRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "urbis_storage_orphans_removed_total",
		Help: "Arquivos órfãos removidos pela reconciliação de anexos.",
	})

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urbis_http_rate_limited_total",
			Help: "Requisições recusadas por limite de taxa, por escopo.",
		},
		[]string{"scope"},
	)

	registerOnce sync.Once
)

// Init registra as métricas no registro padrão. Pode ser chamada mais de uma vez.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, requestAttempts, orphansRemoved, rateLimited)
	})
}

// Handler expõe /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAttempt conta uma tentativa do wrapper (outcome: success, retry, error).
func ObserveAttempt(label, outcome string) {
	if label == "" {
		label = "unlabeled"
	}
	requestAttempts.WithLabelValues(label, outcome).Inc()
}

// AddOrphansRemoved soma arquivos removidos pelo reconciliador.
func AddOrphansRemoved(n int) {
	if n > 0 {
		orphansRemoved.Add(float64(n))
	}
}

// ObserveRateLimited conta uma requisição recusada pelo limitador do escopo.
func ObserveRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}

// Instrument mede RPS, latência e requisições em andamento usando o padrão da rota do chi.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := RoutePattern(r)
		labels := []string{r.Method, route, strconv.Itoa(status)}
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}

// RoutePattern evita cardinalidade alta trocando ids pelo padrão registrado.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
