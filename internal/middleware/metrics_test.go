package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetrics_RegisterAll(t *testing.T) {
	m, reg := registeredMetrics(t)

	// Touch one series per family so Gather reports them all.
	m.IncRateLimitRequests("/experts", "ip")
	m.IncRateLimitBlocked("/experts", "ip")
	m.IncRateLimitRedisErrors()
	m.ObserveHTTPRequest("GET", "/experts", "200", 0.01, 10, 20)

	for _, name := range []string{
		MetricRateLimitRequests,
		MetricRateLimitBlocked,
		MetricRateLimitRedisErrors,
		MetricHTTPRequestDuration,
		MetricHTTPRequestsTotal,
		MetricHTTPRequestSizeBytes,
		MetricHTTPResponseSizeBytes,
	} {
		if gatherFamily(t, reg, name) == nil {
			t.Errorf("metric family %s not found after Register", name)
		}
	}
}

func TestMetrics_RegisterDuplicate(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("second Register on the same registry should fail")
	}
}

func TestMetrics_RateLimitCounters(t *testing.T) {
	m, reg := registeredMetrics(t)

	m.IncRateLimitRequests("/search/experts", "ip")
	m.IncRateLimitRequests("/search/experts", "ip")
	m.IncRateLimitRequests("/experts", "ip")
	m.IncRateLimitBlocked("/search/experts", "ip")

	requests := gatherFamily(t, reg, MetricRateLimitRequests)
	if requests == nil {
		t.Fatal("rate limit requests family missing")
	}
	if got := len(requests.GetMetric()); got != 2 {
		t.Errorf("distinct request series = %d, want 2", got)
	}
	for _, metric := range requests.GetMetric() {
		labels := labelMap(metric)
		want := 1.0
		if labels["endpoint"] == "/search/experts" {
			want = 2.0
		}
		if got := metric.GetCounter().GetValue(); got != want {
			t.Errorf("endpoint %s count = %f, want %f", labels["endpoint"], got, want)
		}
	}

	blocked := gatherFamily(t, reg, MetricRateLimitBlocked)
	if blocked == nil || len(blocked.GetMetric()) != 1 {
		t.Fatalf("blocked counter series = %v, want single series", blocked)
	}
	if got := blocked.GetMetric()[0].GetCounter().GetValue(); got != 1.0 {
		t.Errorf("blocked count = %f, want 1", got)
	}
}

func TestMetrics_Collectors(t *testing.T) {
	m := NewMetrics()
	collectors := m.Collectors()
	if len(collectors) != 7 {
		t.Errorf("Collectors() returned %d collectors, want 7", len(collectors))
	}
	for i, c := range collectors {
		if c == nil {
			t.Errorf("collector %d is nil", i)
		}
	}
}
