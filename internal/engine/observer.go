package engine

// TraceOp names an observed engine action.
type TraceOp string

const (
	TraceSave       TraceOp = "save"
	TraceDelete     TraceOp = "delete"
	TraceLink       TraceOp = "link"
	TraceUnlink     TraceOp = "unlink"
	TraceHookFailed TraceOp = "hook_failed"
)

// TraceEvent is one observed action. Events are emitted as they happen, so
// events inside a transaction that is later rolled back are still reported.
type TraceEvent struct {
	Op     TraceOp `json:"op"`
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	Update bool    `json:"update,omitempty"`
	Target bool    `json:"target,omitempty"`
	Bulk   bool    `json:"bulk,omitempty"`
	Hook   string  `json:"hook,omitempty"`
	Link   string  `json:"link,omitempty"`  // link id for link/unlink
	Other  string  `json:"other,omitempty"` // "type/id" of the linked counterpart
	Error  string  `json:"error,omitempty"`
	Chain  string  `json:"chain"`
}

// Observer receives trace events. Implementations must not call back into
// the engine.
type Observer interface {
	Observe(ev TraceEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev TraceEvent)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev TraceEvent) {
	f(ev)
}

func (e *Engine) observe(ev TraceEvent) {
	if e.observer != nil {
		e.observer.Observe(ev)
	}
}
