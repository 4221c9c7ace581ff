package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
)

// Prometheus records hook events as Prometheus metrics.
type Prometheus struct {
	calls       *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
	retries     *prometheus.CounterVec
	negotiated  *prometheus.CounterVec
	cache       *prometheus.CounterVec
	cacheBytes  *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gds_client",
			Name:      "calls_total",
			Help:      "Procedure calls by namespace, channel and outcome code.",
		}, []string{"namespace", "channel", "outcome"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gds_client",
			Name:      "call_duration_seconds",
			Help:      "Procedure call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"channel"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gds_client",
			Name:      "retries_total",
			Help:      "Retries after transient transport failures.",
		}, []string{"namespace"}),
		negotiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gds_client",
			Name:      "negotiations_total",
			Help:      "Bulk channel negotiations by resulting state.",
		}, []string{"state"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gds_client",
			Name:      "cache_operations_total",
			Help:      "Metadata cache operations.",
		}, []string{"key_type", "result"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gds_client",
			Name:      "cache_written_bytes_total",
			Help:      "Bytes written to the metadata cache.",
		}, []string{"key_type"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gds_gateway",
			Name:      "request_duration_seconds",
			Help:      "Gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg != nil {
		reg.MustRegister(p.calls, p.callLatency, p.retries, p.negotiated, p.cache, p.cacheBytes, p.requests)
	}
	return p
}

// Hooks returns a hook set backed by p.
func (p *Prometheus) Hooks() Hooks {
	return Hooks{Call: promCalls{p}, Cache: promCache{p}, HTTP: promHTTP{p}}
}

type promCalls struct{ p *Prometheus }

func (h promCalls) OnCallStart(context.Context, string, string) {}

func (h promCalls) OnCallComplete(_ context.Context, namespace, channel string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(errors.GetCode(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	h.p.calls.WithLabelValues(namespace, channel, outcome).Inc()
	h.p.callLatency.WithLabelValues(channel).Observe(d.Seconds())
}

func (h promCalls) OnRetry(_ context.Context, namespace string, _ int, _ error) {
	h.p.retries.WithLabelValues(namespace).Inc()
}

func (h promCalls) OnNegotiated(_ context.Context, state string) {
	h.p.negotiated.WithLabelValues(state).Inc()
}

type promCache struct{ p *Prometheus }

func (h promCache) OnCacheHit(_ context.Context, keyType string) {
	h.p.cache.WithLabelValues(keyType, "hit").Inc()
}

func (h promCache) OnCacheMiss(_ context.Context, keyType string) {
	h.p.cache.WithLabelValues(keyType, "miss").Inc()
}

func (h promCache) OnCacheSet(_ context.Context, keyType string, size int) {
	h.p.cache.WithLabelValues(keyType, "set").Inc()
	h.p.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

type promHTTP struct{ p *Prometheus }

func (h promHTTP) OnRequest(context.Context, string, string) {}

func (h promHTTP) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	h.p.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
