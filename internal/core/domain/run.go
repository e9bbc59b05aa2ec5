package domain

import "time"

// RunState is a stage of the generation pipeline.
type RunState string

// Pipeline states in execution order. Failed is reachable from any state.
const (
	StateExtracting         RunState = "extracting"
	StateRuleEvaluation     RunState = "rule_evaluation"
	StateRetrieving         RunState = "retrieving"
	StateGeneratingSections RunState = "generating_sections"
	StateValidating         RunState = "validating"
	StateFinalized          RunState = "finalized"
	StateFailed             RunState = "failed"
)

// IsTerminal reports whether the run has ended.
func (s RunState) IsTerminal() bool {
	return s == StateFinalized || s == StateFailed
}

// Transition records entry into a state.
type Transition struct {
	State  RunState  `json:"state"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitempty"`
}

// RunRecord is the execution trace attached to a document.
type RunRecord struct {
	Transitions  []Transition `json:"transitions"`
	ReusedInputs bool         `json:"reused_inputs,omitempty"`
	Degraded     bool         `json:"degraded,omitempty"`
	Exemplars    int          `json:"exemplars"`
	Warnings     []string     `json:"warnings,omitempty"`
}

// Final returns the last recorded state.
func (r RunRecord) Final() RunState {
	if len(r.Transitions) == 0 {
		return ""
	}
	return r.Transitions[len(r.Transitions)-1].State
}

// RunStatus is a snapshot of an in-flight run.
type RunStatus struct {
	EpisodeID string
	State     RunState
	StartedAt time.Time
	Sections  int
	Completed int
}
