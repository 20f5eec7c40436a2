package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taarifa",
		Name:      "http_requests_total",
		Help:      "Number of HTTP requests handled, by method, path and status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taarifa",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	notificationOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taarifa",
		Name:      "notification_operations_total",
		Help:      "Notification operations performed, by kind.",
	}, []string{"op"})
)

func requestMetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			path := ctx.Path() // route template, not raw URL: bounded cardinality
			timer := prometheus.NewTimer(requestDuration.WithLabelValues(ctx.Request().Method, path))
			err := next(ctx)
			timer.ObserveDuration()

			status := ctx.Response().Status
			if err != nil {
				if herr, ok := err.(*echo.HTTPError); ok {
					status = herr.Code
				}
			}
			requestsTotal.WithLabelValues(ctx.Request().Method, path, strconv.Itoa(status)).Inc()
			return err
		}
	}
}
