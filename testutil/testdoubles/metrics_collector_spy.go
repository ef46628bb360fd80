package testdoubles

import (
	"maps"
	"sync"
	"time"
)

// DurationRecord represents a recorded duration metric call.
type DurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// CounterRecord represents a recorded counter-increment call.
type CounterRecord struct {
	Metric string
	Labels map[string]string
}

// ValueRecord represents a recorded value metric call.
type ValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// MetricsCollectorSpy is a changelog.MetricsCollector that captures metrics calls for testing.
type MetricsCollectorSpy struct {
	durationRecords []DurationRecord
	counterRecords  []CounterRecord
	valueRecords    []ValueRecord
	mu              sync.Mutex
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		durationRecords: make([]DurationRecord, 0),
		counterRecords:  make([]CounterRecord, 0),
		valueRecords:    make([]ValueRecord, 0),
	}
}

// RecordDuration implements changelog.MetricsCollector.
func (c *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.durationRecords = append(c.durationRecords, DurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   maps.Clone(labels),
	})
}

// IncrementCounter implements changelog.MetricsCollector.
func (c *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counterRecords = append(c.counterRecords, CounterRecord{
		Metric: metric,
		Labels: maps.Clone(labels),
	})
}

// RecordValue implements changelog.MetricsCollector.
func (c *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valueRecords = append(c.valueRecords, ValueRecord{
		Metric: metric,
		Value:  value,
		Labels: maps.Clone(labels),
	})
}

// GetDurationRecords returns a copy of the captured duration records.
func (c *MetricsCollectorSpy) GetDurationRecords() []DurationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]DurationRecord, len(c.durationRecords))
	copy(records, c.durationRecords)

	return records
}

// GetCounterRecords returns a copy of the captured counter records.
func (c *MetricsCollectorSpy) GetCounterRecords() []CounterRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]CounterRecord, len(c.counterRecords))
	copy(records, c.counterRecords)

	return records
}

// GetValueRecords returns a copy of the captured value records.
func (c *MetricsCollectorSpy) GetValueRecords() []ValueRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]ValueRecord, len(c.valueRecords))
	copy(records, c.valueRecords)

	return records
}

// HasDurationRecord checks if a duration was recorded for the metric with the given label value.
func (c *MetricsCollectorSpy) HasDurationRecord(metric, labelKey, labelValue string) bool {
	for _, record := range c.GetDurationRecords() {
		if record.Metric == metric && record.Labels[labelKey] == labelValue {
			return true
		}
	}

	return false
}

// HasCounterRecord checks if a counter was incremented for the metric with the given label value.
func (c *MetricsCollectorSpy) HasCounterRecord(metric, labelKey, labelValue string) bool {
	for _, record := range c.GetCounterRecords() {
		if record.Metric == metric && record.Labels[labelKey] == labelValue {
			return true
		}
	}

	return false
}

// HasValueRecord checks if the value was recorded for the metric.
func (c *MetricsCollectorSpy) HasValueRecord(metric string, value float64) bool {
	for _, record := range c.GetValueRecords() {
		if record.Metric == metric && record.Value == value {
			return true
		}
	}

	return false
}
