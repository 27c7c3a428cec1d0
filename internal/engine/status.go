package engine

import (
	"strings"

	"github.com/dockwatch-io/dockwatch/internal/models"
)

// ActionStatus is the derived state of the most recent action command
// aimed at one target. The zero value means idle: no action has been
// observed for the target inside the current window.
type ActionStatus struct {
	TargetID string               `json:"targetId,omitempty"`
	Action   string               `json:"action,omitempty"`
	Status   models.CommandStatus `json:"status,omitempty"`
	Pending  bool                 `json:"pending"`
}

// ResolveAction derives the current action status of a target from the
// most recent record of the given action family. A target with no
// matching record resolves to idle, never to an error.
func ResolveAction(ix *Index, targetID string, actionTypes []string) ActionStatus {
	return actionStatus(targetID, ix.LatestByTarget(actionTypes...))
}

// actionStatus is the map-lookup core of ResolveAction, split out so
// projections resolving many targets can reuse one LatestByTarget pass.
func actionStatus(targetID string, latest map[string]models.CommandRecord) ActionStatus {
	rec, ok := latest[targetID]
	if !ok {
		return ActionStatus{TargetID: targetID}
	}
	return ActionStatus{
		TargetID: targetID,
		Action:   ActionLabel(rec.Type),
		Status:   rec.Status,
		Pending:  rec.IsPending(),
	}
}

// ActionLabel strips the namespace prefix from a command type for
// display: "docker.start" becomes "start".
func ActionLabel(commandType string) string {
	if i := strings.LastIndex(commandType, "."); i >= 0 {
		return commandType[i+1:]
	}
	return commandType
}
