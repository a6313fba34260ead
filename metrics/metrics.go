// Package metrics collects counters, gauges and stopwatches and fans every sample out to
// the installed reporters. Without reporters all helpers are cheap no-ops.
package metrics

import (
	"sync"
	"time"
)

// Metrics identifies a metric.
type Metrics interface {
	Name() string
	Group() string
	Policy() Policy
}

type metricKey struct {
	name   string
	group  string
	policy Policy
}

var (
	_lockMetrics sync.RWMutex
	_metrics     = map[metricKey]Metrics{}
)

// getMetric returns the cached metric for the key, creating it with newFn on first use.
func getMetric[T Metrics](name, group string, policy Policy, newFn func() T) T {
	key := metricKey{name: name, group: group, policy: policy}

	_lockMetrics.RLock()
	m, ok := _metrics[key]
	_lockMetrics.RUnlock()
	if ok {
		return m.(T)
	}

	_lockMetrics.Lock()
	defer _lockMetrics.Unlock()
	if m, ok = _metrics[key]; ok {
		return m.(T)
	}
	created := newFn()
	_metrics[key] = created
	return created
}

func getCounter(name, group string) Counter {
	return getMetric(name, group, Policy_Sum, func() Counter {
		return &counter{name: name, group: group}
	})
}

func getGauge(name, group string) Gauge {
	return getMetric(name, group, Policy_Set, func() Gauge {
		return &gauge{name: name, group: group, policy: Policy_Set}
	})
}

func getMaxGauge(name, group string) Gauge {
	return getMetric(name, group, Policy_Max, func() Gauge {
		return &gauge{name: name, group: group, policy: Policy_Max}
	})
}

func getStopWatch(name, group string) StopWatch {
	return getMetric(name, group, Policy_Stopwatch, func() StopWatch {
		return &stopwatch{name: name, group: group}
	})
}

func IncrCounterWithGroup(key string, group string, value Value) {
	getCounter(key, group).Incr(value)
}

func IncrCounterWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	getCounter(key, group).IncrWithDim(value, dimensions)
}

func UpdateGaugeWithGroup(key string, group string, value Value) {
	getGauge(key, group).Update(value)
}

func UpdateGaugeWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	getGauge(key, group).UpdateWithDim(value, dimensions)
}

// UpdateMaxGaugeWithDimGroup records a high-water mark.
func UpdateMaxGaugeWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	getMaxGauge(key, group).UpdateWithDim(value, dimensions)
}

// RecordStopwatchWithGroup records the time elapsed since startTime and returns it.
func RecordStopwatchWithGroup(key string, group string, startTime time.Time) time.Duration {
	return getStopWatch(key, group).RecordWithDim(nil, startTime)
}

func RecordStopwatchWithDimGroup(key string, group string, startTime time.Time, dimensions Dimension) time.Duration {
	return getStopWatch(key, group).RecordWithDim(dimensions, startTime)
}
