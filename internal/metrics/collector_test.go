package metrics

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()

	if collector == nil {
		t.Fatal("NewCollector() returned nil")
	}

	if collector.reconcileMetrics == nil {
		t.Fatal("reconcileMetrics not initialized")
	}

	if collector.operationCounters == nil {
		t.Fatal("operationCounters not initialized")
	}

	metrics := collector.GetMetrics()
	if metrics.Passes != 0 {
		t.Errorf("Expected 0 initial passes, got %d", metrics.Passes)
	}

	if metrics.StartTime.IsZero() {
		t.Error("Expected start time to be set")
	}
}

func TestPassMetrics(t *testing.T) {
	collector := NewCollector()

	collector.RecordPass(1, true, 2*time.Millisecond)
	collector.RecordPass(3, true, 4*time.Millisecond)
	collector.RecordPass(1, false, 6*time.Millisecond)
	collector.RecordPass(0, false, time.Millisecond)

	metrics := collector.GetMetrics()
	if metrics.Passes != 4 {
		t.Errorf("Expected 4 passes, got %d", metrics.Passes)
	}

	if metrics.GranularPasses != 2 {
		t.Errorf("Expected 2 granular passes, got %d", metrics.GranularPasses)
	}

	if metrics.ResetPasses != 1 {
		t.Errorf("Expected 1 reset pass, got %d", metrics.ResetPasses)
	}

	if metrics.NoopPasses != 1 {
		t.Errorf("Expected 1 no-op pass, got %d", metrics.NoopPasses)
	}

	if metrics.OperationsEmitted != 5 {
		t.Errorf("Expected 5 operations, got %d", metrics.OperationsEmitted)
	}

	if metrics.LastPassDuration != time.Millisecond {
		t.Errorf("Expected last pass duration 1ms, got %v", metrics.LastPassDuration)
	}

	if metrics.TotalPassDuration != 13*time.Millisecond {
		t.Errorf("Expected total pass duration 13ms, got %v", metrics.TotalPassDuration)
	}

	if avg := collector.GetAveragePassDuration(); avg != 13*time.Millisecond/4 {
		t.Errorf("Expected average 3.25ms, got %v", avg)
	}
}

func TestSubscriptionMetrics(t *testing.T) {
	collector := NewCollector()

	collector.IncrementSubscriptionAttached()
	collector.IncrementSubscriptionAttached()
	collector.IncrementSubscriptionDetached()
	collector.IncrementSubscriptionAttached()

	metrics := collector.GetMetrics()
	if metrics.SubscriptionsAttached != 3 {
		t.Errorf("Expected 3 attached, got %d", metrics.SubscriptionsAttached)
	}

	if metrics.ActiveSubscriptions != 2 {
		t.Errorf("Expected 2 active, got %d", metrics.ActiveSubscriptions)
	}

	// Max concurrent should remain the same
	if metrics.MaxConcurrentSubscriptions != 2 {
		t.Errorf("Expected max concurrent 2, got %d", metrics.MaxConcurrentSubscriptions)
	}
}

func TestRates(t *testing.T) {
	collector := NewCollector()

	if rate := collector.GetResetRate(); rate != 0.0 {
		t.Errorf("Expected 0%% reset rate with no passes, got %f", rate)
	}

	collector.RecordPass(1, true, 0)
	collector.RecordPass(1, false, 0)
	collector.RecordPass(1, false, 0)
	collector.RecordPass(2, true, 0)

	if rate := collector.GetResetRate(); rate != 50.0 {
		t.Errorf("Expected 50%% reset rate, got %f", rate)
	}

	collector.IncrementPassError()
	if rate := collector.GetErrorRate(); rate != 20.0 {
		t.Errorf("Expected 20%% error rate, got %f", rate)
	}
}

func TestCustomCounters(t *testing.T) {
	collector := NewCollector()

	collector.IncrementCustomCounter("fallback.multiple_deltas")
	collector.IncrementCustomCounter("fallback.multiple_deltas")
	collector.IncrementCustomCounter("fallback.head_removal")

	counters := collector.GetCustomCounters()
	if counters["fallback.multiple_deltas"] != 2 {
		t.Errorf("Expected counter 2, got %d", counters["fallback.multiple_deltas"])
	}
	if counters["fallback.head_removal"] != 1 {
		t.Errorf("Expected counter 1, got %d", counters["fallback.head_removal"])
	}

	// Returned map is a copy
	counters["fallback.head_removal"] = 99
	if collector.GetCustomCounters()["fallback.head_removal"] != 1 {
		t.Error("GetCustomCounters() exposed internal state")
	}
}

func TestReset(t *testing.T) {
	collector := NewCollector()

	collector.RecordPass(2, true, time.Millisecond)
	collector.IncrementSubscriptionAttached()
	collector.IncrementCustomCounter("x")

	collector.Reset()

	metrics := collector.GetMetrics()
	if metrics.Passes != 0 || metrics.OperationsEmitted != 0 || metrics.ActiveSubscriptions != 0 {
		t.Errorf("Expected zeroed metrics after Reset(), got %+v", metrics)
	}
	if len(collector.GetCustomCounters()) != 0 {
		t.Error("Expected custom counters cleared after Reset()")
	}
}

func TestConcurrentRecording(t *testing.T) {
	collector := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.RecordPass(1, true, time.Microsecond)
				collector.IncrementCustomCounter("fallback.none")
			}
		}()
	}
	wg.Wait()

	metrics := collector.GetMetrics()
	if metrics.Passes != 5000 {
		t.Errorf("Expected 5000 passes, got %d", metrics.Passes)
	}
	if collector.GetCustomCounters()["fallback.none"] != 5000 {
		t.Errorf("Expected custom counter 5000, got %d", collector.GetCustomCounters()["fallback.none"])
	}
}

func TestMetricsJSON(t *testing.T) {
	collector := NewCollector()
	collector.RecordPass(1, true, time.Millisecond)

	data, err := json.Marshal(collector.GetMetrics())
	if err != nil {
		t.Fatalf("Failed to marshal metrics: %v", err)
	}

	for _, field := range []string{`"passes":1`, `"granular_passes":1`, `"operations_emitted":1`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Expected %s in %s", field, data)
		}
	}
}
