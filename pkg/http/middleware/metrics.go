package middleware

import (
	"strconv"
	"time"

	applogger "MarketBrief/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labelled by route template, never by raw path.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketbrief_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketbrief_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "class"})

	inFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketbrief_http_in_flight_requests",
		Help: "Requests currently being served.",
	}, []string{"route", "method"})

	responseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketbrief_http_response_size_bytes",
		Help:    "HTTP response body size.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"route", "method", "class"})
)

// Metrics records request metrics. Handler errors are rendered here so the
// recorded status is the one the client sees. 5xx replies log as errors and
// requests slower than slow as warnings.
func Metrics(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route, method := c.Path(), c.Request().Method
			if route == "" {
				route = "unmatched"
			}
			g := inFlight.WithLabelValues(route, method)
			g.Inc()
			defer g.Dec()

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			took := time.Since(start)

			res := c.Response()
			class := statusClass(res.Status)
			requestsTotal.WithLabelValues(route, method, strconv.Itoa(res.Status)).Inc()
			requestSeconds.WithLabelValues(route, method, class).Observe(took.Seconds())
			responseBytes.WithLabelValues(route, method, class).Observe(float64(res.Size))

			if l == nil || (res.Status < 500 && (slow <= 0 || took < slow)) {
				return nil
			}
			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", res.Status),
				applogger.Duration("duration_ms", took),
				applogger.Int64("bytes", res.Size),
				applogger.String("request_id", RequestIDFrom(c)),
			}
			if res.Status >= 500 {
				l.Error("http request failed", fields...)
			} else {
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
