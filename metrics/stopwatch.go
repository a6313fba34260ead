package metrics

import (
	"time"
)

// StopWatch records durations in milliseconds.
type StopWatch interface {
	Metrics
	RecordWithDim(dimensions Dimension, startTime time.Time) time.Duration
}

type stopwatch struct {
	name  string
	group string
}

func (s *stopwatch) Name() string {
	return s.name
}

func (s *stopwatch) Group() string {
	return s.group
}

func (s *stopwatch) Policy() Policy {
	return Policy_Stopwatch
}

func (s *stopwatch) RecordWithDim(dimensions Dimension, startTime time.Time) time.Duration {
	duration := time.Since(startTime)
	report(Record{
		metrics:    s,
		value:      Value(float64(duration.Microseconds()) / 1000),
		cnt:        1,
		dimensions: dimensions,
	})
	return duration
}
