// Package models contains shared data structures used across the application.
package models

import (
	"encoding/json"
	"time"
)

// CommandStatus represents the lifecycle status of a command record.
type CommandStatus string

const (
	CommandQueued     CommandStatus = "queued"
	CommandSent       CommandStatus = "sent"
	CommandInProgress CommandStatus = "in_progress"
	CommandSuccess    CommandStatus = "success"
	CommandFailed     CommandStatus = "failed"
)

// Command types understood by the node agents. The dashboard never
// interprets these beyond routing; the agent decides what they mean.
const (
	CommandContainerList    = "docker.list"
	CommandContainerStart   = "docker.start"
	CommandContainerStop    = "docker.stop"
	CommandContainerRestart = "docker.restart"
	CommandContainerRemove  = "docker.remove"
	CommandContainerStats   = "docker.stats"
	CommandContainerLogs    = "docker.logs"
	CommandContainerExec    = "docker.exec"
	CommandStackUp          = "compose.up"
	CommandStackDown        = "compose.down"
	CommandStackList        = "compose.list"
)

// ContainerActionTypes is the family of commands that act on a single
// container and drive its pending-state overlay.
var ContainerActionTypes = []string{
	CommandContainerStart,
	CommandContainerStop,
	CommandContainerRestart,
	CommandContainerRemove,
}

// StackActionTypes is the family of commands that act on a compose stack.
var StackActionTypes = []string{
	CommandStackUp,
	CommandStackDown,
}

// CommandRecord is one entry in a node's append-only command log as
// returned by the controller API. Records are immutable once observed:
// a later poll may reveal a status transition for the same ID
// (queued → success) but never a changed Type, Payload, or CreatedAt.
// Consumers re-scan the log and deduplicate by ID; they never mutate
// records in place.
type CommandRecord struct {
	ID        string        `json:"id"`
	NodeID    string        `json:"nodeId"`
	Type      string        `json:"type"`
	Status    CommandStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`

	// Payload is the opaque command argument string, conventionally a
	// JSON object carrying a correlation key ("containerId" or "stack").
	// Empty means the command targets the node as a whole.
	Payload string `json:"payload,omitempty"`

	// OutputLog is the opaque result text, present only once the record
	// reaches a terminal status. May be empty even on success.
	OutputLog string `json:"outputLog,omitempty"`

	// Error is the human-readable failure reason for failed commands.
	Error string `json:"error,omitempty"`
}

// IsTerminal reports whether the record reached a final status.
func (r CommandRecord) IsTerminal() bool {
	return r.Status == CommandSuccess || r.Status == CommandFailed
}

// IsPending reports whether the command is still awaiting its result.
func (r CommandRecord) IsPending() bool {
	switch r.Status {
	case CommandQueued, CommandSent, CommandInProgress:
		return true
	}
	return false
}

// commandPayload is the conventional shape of a targeted command payload.
// Only the correlation keys are decoded; everything else stays opaque.
type commandPayload struct {
	ContainerID string `json:"containerId"`
	Stack       string `json:"stack"`
}

// Target extracts the correlation key from the record's payload: the
// container ID for docker.* commands, the stack name for compose.*
// commands. Extraction is defensive — an empty or malformed payload
// yields "", meaning the record is untargeted, never excluded.
func (r CommandRecord) Target() string {
	if r.Payload == "" {
		return ""
	}
	var p commandPayload
	if err := json.Unmarshal([]byte(r.Payload), &p); err != nil {
		return ""
	}
	if p.ContainerID != "" {
		return p.ContainerID
	}
	return p.Stack
}
