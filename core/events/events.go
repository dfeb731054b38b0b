// Package events defines the run-progress events published on the internal
// event bus. Subscribers (logging, external publishers) receive them
// best-effort; slow consumers never block the engine.
package events

import "time"

// Stage identifies a pipeline milestone within one run.
type Stage string

const (
	StageScenariosGenerated Stage = "scenarios_generated"
	StageSolveStarted       Stage = "solve_started"
	StageSolved             Stage = "solved"
	StageEvaluated          Stage = "evaluated"
	StageAggregated         Stage = "aggregated"
	StageComposed           Stage = "composed"
	StageFailed             Stage = "failed"
)

// RunEvent marks a stage transition of one optimization run.
type RunEvent struct {
	RunID string
	Stage Stage
	Err   error
	Time  time.Time
}
