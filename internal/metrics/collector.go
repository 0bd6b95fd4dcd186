package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides simple built-in metrics collection for reconciliation passes
type Collector struct {
	reconcileMetrics  *ReconcileMetrics
	operationCounters map[string]*int64
	mu                sync.RWMutex
	startTime         time.Time
}

// ReconcileMetrics tracks coordinator-level performance data
type ReconcileMetrics struct {
	// Passes
	Passes         int64 `json:"passes"`
	GranularPasses int64 `json:"granular_passes"`
	ResetPasses    int64 `json:"reset_passes"`
	NoopPasses     int64 `json:"noop_passes"`
	PassErrors     int64 `json:"pass_errors"`

	// Operations
	OperationsEmitted int64 `json:"operations_emitted"`

	// Timing
	LastPassDuration  time.Duration `json:"last_pass_duration"`
	TotalPassDuration time.Duration `json:"total_pass_duration"`

	// Subscriptions
	SubscriptionsAttached      int64 `json:"subscriptions_attached"`
	SubscriptionsDetached      int64 `json:"subscriptions_detached"`
	ActiveSubscriptions        int64 `json:"active_subscriptions"`
	MaxConcurrentSubscriptions int64 `json:"max_concurrent_subscriptions"`

	// Uptime
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		reconcileMetrics: &ReconcileMetrics{
			StartTime: time.Now(),
		},
		operationCounters: make(map[string]*int64),
		startTime:         time.Now(),
	}
}

// RecordPass records a finished reconciliation pass. granular is true when the
// pass emitted fine-grained operations, operations is the number emitted.
func (c *Collector) RecordPass(operations int, granular bool, duration time.Duration) {
	atomic.AddInt64(&c.reconcileMetrics.Passes, 1)
	atomic.AddInt64(&c.reconcileMetrics.OperationsEmitted, int64(operations))

	switch {
	case operations == 0:
		atomic.AddInt64(&c.reconcileMetrics.NoopPasses, 1)
	case granular:
		atomic.AddInt64(&c.reconcileMetrics.GranularPasses, 1)
	default:
		atomic.AddInt64(&c.reconcileMetrics.ResetPasses, 1)
	}

	atomic.StoreInt64((*int64)(&c.reconcileMetrics.LastPassDuration), int64(duration))
	atomic.AddInt64((*int64)(&c.reconcileMetrics.TotalPassDuration), int64(duration))
}

// IncrementPassError records a pass aborted by an error
func (c *Collector) IncrementPassError() {
	atomic.AddInt64(&c.reconcileMetrics.PassErrors, 1)
}

// IncrementSubscriptionAttached records a listener attached to a source
func (c *Collector) IncrementSubscriptionAttached() {
	atomic.AddInt64(&c.reconcileMetrics.SubscriptionsAttached, 1)
	currentActive := atomic.AddInt64(&c.reconcileMetrics.ActiveSubscriptions, 1)

	// Update max concurrent if needed
	for {
		max := atomic.LoadInt64(&c.reconcileMetrics.MaxConcurrentSubscriptions)
		if currentActive <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.reconcileMetrics.MaxConcurrentSubscriptions, max, currentActive) {
			break
		}
	}
}

// IncrementSubscriptionDetached records a listener removed from a source
func (c *Collector) IncrementSubscriptionDetached() {
	atomic.AddInt64(&c.reconcileMetrics.SubscriptionsDetached, 1)
	atomic.AddInt64(&c.reconcileMetrics.ActiveSubscriptions, -1)
}

// IncrementCustomCounter increments a custom named counter
func (c *Collector) IncrementCustomCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.operationCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.operationCounters[name] = &newCounter
	}
}

// GetMetrics returns current reconciliation metrics
func (c *Collector) GetMetrics() ReconcileMetrics {
	c.mu.RLock()
	startTime := c.startTime
	appStart := c.reconcileMetrics.StartTime
	c.mu.RUnlock()

	// Return a copy with current atomic values
	return ReconcileMetrics{
		Passes:                     atomic.LoadInt64(&c.reconcileMetrics.Passes),
		GranularPasses:             atomic.LoadInt64(&c.reconcileMetrics.GranularPasses),
		ResetPasses:                atomic.LoadInt64(&c.reconcileMetrics.ResetPasses),
		NoopPasses:                 atomic.LoadInt64(&c.reconcileMetrics.NoopPasses),
		PassErrors:                 atomic.LoadInt64(&c.reconcileMetrics.PassErrors),
		OperationsEmitted:          atomic.LoadInt64(&c.reconcileMetrics.OperationsEmitted),
		LastPassDuration:           time.Duration(atomic.LoadInt64((*int64)(&c.reconcileMetrics.LastPassDuration))),
		TotalPassDuration:          time.Duration(atomic.LoadInt64((*int64)(&c.reconcileMetrics.TotalPassDuration))),
		SubscriptionsAttached:      atomic.LoadInt64(&c.reconcileMetrics.SubscriptionsAttached),
		SubscriptionsDetached:      atomic.LoadInt64(&c.reconcileMetrics.SubscriptionsDetached),
		ActiveSubscriptions:        atomic.LoadInt64(&c.reconcileMetrics.ActiveSubscriptions),
		MaxConcurrentSubscriptions: atomic.LoadInt64(&c.reconcileMetrics.MaxConcurrentSubscriptions),
		StartTime:                  appStart,
		Uptime:                     time.Since(startTime),
	}
}

// GetCustomCounters returns all custom counters
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.operationCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	atomic.StoreInt64(&c.reconcileMetrics.Passes, 0)
	atomic.StoreInt64(&c.reconcileMetrics.GranularPasses, 0)
	atomic.StoreInt64(&c.reconcileMetrics.ResetPasses, 0)
	atomic.StoreInt64(&c.reconcileMetrics.NoopPasses, 0)
	atomic.StoreInt64(&c.reconcileMetrics.PassErrors, 0)
	atomic.StoreInt64(&c.reconcileMetrics.OperationsEmitted, 0)
	atomic.StoreInt64((*int64)(&c.reconcileMetrics.LastPassDuration), 0)
	atomic.StoreInt64((*int64)(&c.reconcileMetrics.TotalPassDuration), 0)
	atomic.StoreInt64(&c.reconcileMetrics.SubscriptionsAttached, 0)
	atomic.StoreInt64(&c.reconcileMetrics.SubscriptionsDetached, 0)
	atomic.StoreInt64(&c.reconcileMetrics.ActiveSubscriptions, 0)
	atomic.StoreInt64(&c.reconcileMetrics.MaxConcurrentSubscriptions, 0)

	// Reset custom counters
	c.operationCounters = make(map[string]*int64)

	// Reset start time
	c.startTime = time.Now()
	c.reconcileMetrics.StartTime = c.startTime
}

// GetResetRate returns the share of non-empty passes that fell back to a reset, in percent
func (c *Collector) GetResetRate() float64 {
	resets := atomic.LoadInt64(&c.reconcileMetrics.ResetPasses)
	granular := atomic.LoadInt64(&c.reconcileMetrics.GranularPasses)

	total := resets + granular
	if total == 0 {
		return 0.0
	}

	return float64(resets) / float64(total) * 100.0
}

// GetErrorRate returns the share of passes aborted by an error, in percent
func (c *Collector) GetErrorRate() float64 {
	passes := atomic.LoadInt64(&c.reconcileMetrics.Passes)
	errors := atomic.LoadInt64(&c.reconcileMetrics.PassErrors)

	if passes+errors == 0 {
		return 0.0
	}

	return float64(errors) / float64(passes+errors) * 100.0
}

// GetAveragePassDuration returns the mean duration of a completed pass
func (c *Collector) GetAveragePassDuration() time.Duration {
	passes := atomic.LoadInt64(&c.reconcileMetrics.Passes)
	if passes == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64((*int64)(&c.reconcileMetrics.TotalPassDuration)) / passes)
}
