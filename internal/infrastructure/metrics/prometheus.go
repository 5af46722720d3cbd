package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 以 Prometheus 記錄分析、比對、快取與 HTTP 指標。
// 每個 Recorder 擁有獨立的 registry。
type Recorder struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	matches       prometheus.Histogram
	relaxations   prometheus.Counter
	cache         *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatencies *prometheus.HistogramVec
}

// New 建立指標記錄器。
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_requests_total",
				Help: "Total number of analysis requests by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analysis_duration_seconds",
				Help:    "Duration of analysis requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		matches: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "analog_matches",
			Help:    "Number of historical analogs retained per request",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 250},
		}),
		relaxations: f.NewCounter(prometheus.CounterOpts{
			Name: "analog_relaxations_total",
			Help: "Total number of requests that needed tolerance relaxation",
		}),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "series_cache_total",
				Help: "Series cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpLatencies: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// ObserveAnalysis 記錄一次分析請求。
func (r *Recorder) ObserveAnalysis(kind, status string, d time.Duration) {
	r.requests.WithLabelValues(kind, status).Inc()
	r.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveMatches 記錄相似日數量與是否放寬。
func (r *Recorder) ObserveMatches(n int, relaxed bool) {
	r.matches.Observe(float64(n))
	if relaxed {
		r.relaxations.Inc()
	}
}

// CacheHit 記錄快取命中。
func (r *Recorder) CacheHit() { r.cache.WithLabelValues("hit").Inc() }

// CacheMiss 記錄快取未命中。
func (r *Recorder) CacheMiss() { r.cache.WithLabelValues("miss").Inc() }

// CacheError 記錄快取讀寫錯誤。
func (r *Recorder) CacheError() { r.cache.WithLabelValues("error").Inc() }

// ObserveHTTP 記錄一次 HTTP 請求。
func (r *Recorder) ObserveHTTP(route, method string, code int, d time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.httpLatencies.WithLabelValues(route).Observe(d.Seconds())
}

// Registry 回傳底層 registry，供測試讀取。
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler 回傳 /metrics 的 HTTP handler。
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
