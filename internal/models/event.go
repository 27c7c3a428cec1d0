package models

import "time"

// Agent event names emitted on the controller's audit stream for
// manually triggered operations.
const (
	EventOperationStart     = "operation.start"
	EventOperationCompleted = "operation.completed"
)

// EventCategoryAgents selects agent-originated events when listing.
const EventCategoryAgents = "agents"

// AgentEvent is one audit entry emitted by a node agent around a
// manually triggered operation. Start and completion arrive as two
// independent events with no shared correlation ID; pairing them back
// into attempts is the read side's job.
type AgentEvent struct {
	ID        string    `json:"id"`
	Name      string    `json:"eventName"`
	Timestamp time.Time `json:"timestampUtc"`
	MachineID string    `json:"machineId"`
	Actor     string    `json:"actorName,omitempty"`

	// Success is set only on completion events: true, false, or missing
	// entirely when the agent crashed before reporting.
	Success *bool `json:"success,omitempty"`

	// Error carries the failure detail on unsuccessful completions.
	Error string `json:"error,omitempty"`

	// Data is an opaque JSON string with operation-specific detail.
	Data string `json:"dataJson,omitempty"`
}

// IsStart reports whether the event opens an operation attempt.
func (e AgentEvent) IsStart() bool { return e.Name == EventOperationStart }

// IsCompletion reports whether the event closes an operation attempt.
func (e AgentEvent) IsCompletion() bool { return e.Name == EventOperationCompleted }
