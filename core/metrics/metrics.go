package metrics

import "time"

// RunRecord summarises one completed (or failed) optimization run for
// observability sinks.
type RunRecord struct {
	RunID        string
	State        string
	Scenarios    int
	Horizon      int
	Lambda       float64
	ExpectedCost float64
	CVaR         float64
	StdError     float64
	Duration     time.Duration
	Time         time.Time
}

// SolveRecord captures one co-optimizer solve attempt.
type SolveRecord struct {
	RunID    string
	State    string
	Retried  bool
	Duration time.Duration
	Time     time.Time
}

// ScenarioBatch captures one scenario-generation batch.
type ScenarioBatch struct {
	RunID    string
	Count    int
	Horizon  int
	Duration time.Duration
	Time     time.Time
}

// MetricsSink records engine events for observability purposes.
type MetricsSink interface {
	RecordRun(RunRecord) error
	RecordSolve(SolveRecord) error
	RecordScenarioBatch(ScenarioBatch) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunRecord) error               { return nil }
func (NopSink) RecordSolve(SolveRecord) error           { return nil }
func (NopSink) RecordScenarioBatch(ScenarioBatch) error { return nil }
