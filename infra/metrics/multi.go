package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/fuelhedge/core/metrics"
)

// MultiSink fans records out to several sinks. Every sink sees every record;
// errors are joined rather than short-circuiting.
type MultiSink struct {
	sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordRun(rec coremetrics.RunRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordRun(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordSolve(rec coremetrics.SolveRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordSolve(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordScenarioBatch(rec coremetrics.ScenarioBatch) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordScenarioBatch(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
