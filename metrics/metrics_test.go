package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface {
	Write(*dto.Metric) error
}) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	if m.Gauge != nil {
		return m.Gauge.GetValue()
	}
	t.Fatalf("metric has neither counter nor gauge value: %+v", &m)
	return 0
}

func TestSetCacheSize(t *testing.T) {
	SetCacheSize(7)
	if got := counterValue(t, cacheSize); got != 7 {
		t.Fatalf("expected cache_entries=7, got %v", got)
	}
	SetCacheSize(0)
	if got := counterValue(t, cacheSize); got != 0 {
		t.Fatalf("expected cache_entries=0 after reset, got %v", got)
	}
}

func TestObserveLookup(t *testing.T) {
	before := counterValue(t, lookupsTotal.WithLabelValues("ok"))
	ObserveLookup("ok")
	ObserveLookup("ok")
	after := counterValue(t, lookupsTotal.WithLabelValues("ok"))
	if after-before != 2 {
		t.Fatalf("expected lookups_total{outcome=ok} to increase by 2, got delta %v", after-before)
	}
}

func TestIncSentinelLoad(t *testing.T) {
	before := counterValue(t, sentinelLoadTotal)
	IncSentinelLoad()
	after := counterValue(t, sentinelLoadTotal)
	if after-before != 1 {
		t.Fatalf("expected sentinel_load_total to increase by 1, got delta %v", after-before)
	}
}

func TestSetRoundRobinCursor(t *testing.T) {
	SetRoundRobinCursor("G1", 3)
	if got := counterValue(t, roundRobinCursor.WithLabelValues("G1")); got != 3 {
		t.Fatalf("expected round_robin_cursor{replica_group_id=G1}=3, got %v", got)
	}
	SetRoundRobinCursor("G1", 0)
	if got := counterValue(t, roundRobinCursor.WithLabelValues("G1")); got != 0 {
		t.Fatalf("expected cursor reset to 0, got %v", got)
	}
}

func TestRegister_IdempotentUnderConcurrentCalls(t *testing.T) {
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			Register()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
