package harness

import (
	"github.com/roach88/autosync/internal/engine"
	"github.com/roach88/autosync/internal/ir"
)

// TraceEvent is one engine trace event tagged with the scenario step that
// produced it.
type TraceEvent struct {
	Step int `json:"step"`
	engine.TraceEvent
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains every engine event in emission order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Records holds the final stored records keyed by entity type.
	Records map[string][]RecordState `json:"records"`
}

// RecordState is a stored record as captured after the last step.
type RecordState struct {
	Ref     string      `json:"ref,omitempty"` // scenario alias, if any
	ID      string      `json:"id"`
	Version int64       `json:"version"`
	Fields  ir.IRObject `json:"fields"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Records: make(map[string][]RecordState),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
