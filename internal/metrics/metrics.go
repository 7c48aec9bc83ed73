package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutorbook", Name: "http_requests_total", Help: "Processed API requests",
	}, []string{"method", "route", "status"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tutorbook", Name: "http_request_seconds", Help: "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tutorbook", Name: "handler_errors_total", Help: "Handler errors",
	})
	BotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tutorbook", Name: "bot_updates_total", Help: "Processed telegram updates",
	})
	Redemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutorbook", Name: "activation_redemptions_total", Help: "Activation code redemption attempts",
	}, []string{"result"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tutorbook", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, HandlerErrors, BotUpdates, Redemptions, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveRequest(method, route, status string, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
