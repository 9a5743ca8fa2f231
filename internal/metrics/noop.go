package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RunScheduled()                                  {}
func (n *NoopSink) RunCancelled()                                  {}
func (n *NoopSink) ScheduleFailed(reason string)                   {}
func (n *NoopSink) ActiveRunsUpdate(count int)                     {}
func (n *NoopSink) RunFired(lateness time.Duration)                {}
func (n *NoopSink) RunCompleted(duration time.Duration, err error) {}
