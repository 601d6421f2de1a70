package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter_IncAndAdd(t *testing.T) {
	c := NewMetricsCollector()
	ctr := c.Counter("test_total", "test counter", "")
	ctr.Inc()
	ctr.Add(4)
	if got := ctr.Value(); got != 5 {
		t.Errorf("value = %d, want 5", got)
	}
}

func TestCounter_SameNameSameInstance(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("dup_total", "", "")
	b := c.Counter("dup_total", "", "")
	a.Inc()
	if b.Value() != 1 {
		t.Error("counters with the same key must share state")
	}
}

func TestGauge_SetIncDec(t *testing.T) {
	c := NewMetricsCollector()
	g := c.Gauge("test_gauge", "", "")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if got := g.Value(); got != 9 {
		t.Errorf("value = %d, want 9", got)
	}
}

func TestHistogram_Observe(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Histogram("test_seconds", "", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)
	h.Observe(100)

	if h.count != 3 {
		t.Errorf("count = %d, want 3", h.count)
	}
	if h.buckets[0].count != 1 {
		t.Errorf("le=1 bucket = %d, want 1", h.buckets[0].count)
	}
	if h.buckets[1].count != 2 {
		t.Errorf("le=5 bucket = %d, want 2", h.buckets[1].count)
	}
}

func TestHandler_ExpositionFormat(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("wabot_test_total", "A test counter", "").Add(7)
	c.Gauge("wabot_test_gauge", "A test gauge", "").Set(3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler()(rec, req)

	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	for _, want := range []string{
		"wabot_uptime_seconds",
		"# TYPE wabot_test_total counter",
		"wabot_test_total 7",
		"# TYPE wabot_test_gauge gauge",
		"wabot_test_gauge 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q\n%s", want, body)
		}
	}
}

func TestHandler_LabeledCounter(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("wabot_outcomes_total", "Outcomes", `outcome="handled"`).Inc()

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `wabot_outcomes_total{outcome="handled"} 1`) {
		t.Errorf("labeled sample missing:\n%s", rec.Body.String())
	}
}

func TestHandler_HistogramBuckets(t *testing.T) {
	c := NewMetricsCollector()
	h := c.Histogram("wabot_test_seconds", "Latency", "", []float64{1, 5})
	h.Observe(0.5)
	h.Observe(3)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"# TYPE wabot_test_seconds histogram",
		`wabot_test_seconds_bucket{le="1"} 1`,
		`wabot_test_seconds_bucket{le="5"} 2`,
		"wabot_test_seconds_count 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q\n%s", want, body)
		}
	}
}
