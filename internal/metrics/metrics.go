package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ctxKey string

const routeLabelKey ctxKey = "metrics_route"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicgrid_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicgrid_http_errors_total",
		Help: "Total number of HTTP requests resulting in server errors.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinicgrid_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	dbLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinicgrid_db_latency_seconds",
		Help:    "Histogram of database operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	layoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinicgrid_layout_duration_seconds",
		Help:    "Time spent computing day layouts.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})

	layoutEvents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinicgrid_layout_events",
		Help:    "Number of events positioned per day layout.",
		Buckets: prometheus.LinearBuckets(0, 10, 10),
	})

	layoutCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicgrid_layout_cache_total",
		Help: "Layout cache lookups by result.",
	}, []string{"result"})

	jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicgrid_job_runs_total",
		Help: "Background job runs by job and outcome.",
	}, []string{"job", "outcome"})
)

// Middleware records request metrics and enriches the context with the route label for downstream instrumentation.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := &routeLabel{value: r.URL.Path}
			ctx := context.WithValue(r.Context(), routeLabelKey, route)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			// The pattern is only complete once chi has routed the request.
			route.value = routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			statusCode := strconv.Itoa(status)

			httpRequestsTotal.WithLabelValues(r.Method, route.value).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route.value, statusCode).Observe(time.Since(start).Seconds())
			if status >= http.StatusInternalServerError {
				httpErrorsTotal.WithLabelValues(r.Method, route.value, statusCode).Inc()
			}
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDBLatency records database latency for a given operation, associating it with the request route when available.
func ObserveDBLatency(ctx context.Context, operation string, start time.Time) {
	dbLatency.WithLabelValues(operation, routeFromContext(ctx)).Observe(time.Since(start).Seconds())
}

// ObserveLayout records how long a layout took and how many events it placed.
func ObserveLayout(start time.Time, events int) {
	layoutDuration.Observe(time.Since(start).Seconds())
	layoutEvents.Observe(float64(events))
}

// CacheResult counts a layout cache lookup: "hit", "miss" or "error".
func CacheResult(result string) {
	layoutCacheTotal.WithLabelValues(result).Inc()
}

// JobRun counts a background job execution.
func JobRun(job string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	jobRunsTotal.WithLabelValues(job, outcome).Inc()
}

type routeLabel struct {
	value string
}

func routeFromContext(ctx context.Context) string {
	if route, ok := ctx.Value(routeLabelKey).(*routeLabel); ok && route.value != "" {
		if rctx := chi.RouteContext(ctx); rctx != nil {
			if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
				return pattern
			}
		}
		return route.value
	}
	return "background"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
