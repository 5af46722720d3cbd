package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// counterValue 從 registry 讀取符合標籤的 counter 值。
func counterValue(t *testing.T, r *Recorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecorder_Counters(t *testing.T) {
	r := New()
	r.ObserveAnalysis("analog", "ok", 20*time.Millisecond)
	r.ObserveAnalysis("analog", "ok", 10*time.Millisecond)
	r.ObserveAnalysis("regime", "error", time.Millisecond)
	r.ObserveMatches(3, true)
	r.ObserveMatches(12, false)
	r.CacheHit()
	r.CacheMiss()
	r.CacheMiss()

	if got := counterValue(t, r, "analysis_requests_total", map[string]string{"kind": "analog", "status": "ok"}); got != 2 {
		t.Fatalf("analog ok = %v", got)
	}
	if got := counterValue(t, r, "analog_relaxations_total", nil); got != 1 {
		t.Fatalf("relaxations = %v", got)
	}
	if got := counterValue(t, r, "series_cache_total", map[string]string{"result": "miss"}); got != 2 {
		t.Fatalf("cache misses = %v", got)
	}
}

func TestRecorder_IsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.CacheHit()
	if got := counterValue(t, b, "series_cache_total", map[string]string{"result": "hit"}); got != 0 {
		t.Fatalf("registries should not share state, got %v", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveHTTP("/api/ping", "GET", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 || !strings.Contains(string(body), `http_requests_total{code="200",method="GET",route="/api/ping"} 1`) {
		t.Fatalf("unexpected metrics output (%d): %s", rec.Code, body)
	}
}
