// Package orchestrate plans and executes tool-backed turns: a keyword
// planner estimates the work, a pure selector picks the execution path, the
// confirmation gate guards writes, and the executor runs plan steps and the
// model's bounded tool-calling loop with at-most-once semantics.
package orchestrate

import "github.com/hushh/voicegate/internal/domain"

// Signals are the inputs to execution mode selection.
type Signals struct {
	RealtimeHealthy bool
	ToolCount       int
	HasWrite        bool
	Ambiguity       bool
	LongRunning     bool
}

// Decision is the selected path for a turn.
type Decision struct {
	Pipeline      domain.Pipeline
	ExecutionMode domain.ExecutionMode
}

// Choose is a pure function. Anything touching multiple capabilities or any
// side effect goes through the orchestrated path; single-tool read-only and
// no-tool interactions stream directly.
func Choose(s Signals) Decision {
	d := Decision{
		Pipeline:      domain.PipelineClassicFallback,
		ExecutionMode: domain.ExecutionModeDirectResponse,
	}
	if s.RealtimeHealthy {
		d.Pipeline = domain.PipelineRealtime
	}
	if s.ToolCount >= 2 || s.HasWrite || s.Ambiguity || s.LongRunning {
		d.ExecutionMode = domain.ExecutionModeBackendOrchestrated
	}
	return d
}
