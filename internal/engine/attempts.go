package engine

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/dockwatch-io/dockwatch/internal/models"
)

// AttemptMetadata is the structured detail agents attach to update
// events: where the new build came from and which version it was.
type AttemptMetadata struct {
	Source  string `json:"source,omitempty"`
	Channel string `json:"channel,omitempty"`
	Version string `json:"version,omitempty"`
}

// Attempt is one reconstructed agent-update attempt: a start event
// paired with its completion, a start still in flight (CompletedAt
// nil), or a completion whose start fell outside the polled window
// (StartedAt equals CompletedAt).
type Attempt struct {
	ID          string          `json:"id"`
	TargetID    string          `json:"targetId,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Success     *bool           `json:"success,omitempty"`
	Error       string          `json:"error,omitempty"`
	Actor       string          `json:"actor,omitempty"`
	Metadata    AttemptMetadata `json:"metadata"`
}

// Matcher pairs start events with completion events. The pairing
// policy is swappable: if the event schema ever grows a shared
// operation ID, an exact matcher can replace the greedy one without
// touching any caller.
type Matcher interface {
	Match(starts, completions []models.AgentEvent) []Attempt
}

// CorrelateAttempts rebuilds the attempt history from a raw event
// window. Events other than the two operation markers are ignored. A
// nil matcher uses GreedyMatcher. Results are ordered most recent
// first.
func CorrelateAttempts(events []models.AgentEvent, m Matcher) []Attempt {
	var starts, completions []models.AgentEvent
	for _, ev := range events {
		switch {
		case ev.IsStart():
			starts = append(starts, ev)
		case ev.IsCompletion():
			completions = append(completions, ev)
		}
	}
	if m == nil {
		m = GreedyMatcher{}
	}
	return m.Match(starts, completions)
}

// GreedyMatcher pairs each start with the first unclaimed completion
// that could belong to it, in start order.
//
// Earlier starts claim completions first, and "could belong" means the
// machine IDs agree (an absent ID on either side matches anything) and
// the completion is not older than the start. With overlapping
// concurrent operations on one machine this can pair a start with
// another operation's completion; the events carry no operation ID
// that would let anyone do better, so the ambiguity is inherent in the
// stream, not accidental here.
type GreedyMatcher struct{}

// Match implements Matcher.
func (GreedyMatcher) Match(starts, completions []models.AgentEvent) []Attempt {
	ordered := make([]models.AgentEvent, len(starts))
	copy(ordered, starts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	claimed := make([]bool, len(completions))
	attempts := make([]Attempt, 0, len(starts)+len(completions))

	for _, start := range ordered {
		matched := false
		for i := range completions {
			c := completions[i]
			if claimed[i] {
				continue
			}
			if !machinesAgree(start.MachineID, c.MachineID) {
				continue
			}
			if c.Timestamp.Before(start.Timestamp) {
				continue
			}
			claimed[i] = true
			attempts = append(attempts, pairedAttempt(start, c))
			matched = true
			break
		}
		if !matched {
			attempts = append(attempts, openAttempt(start))
		}
	}

	for i, c := range completions {
		if !claimed[i] {
			attempts = append(attempts, standaloneAttempt(c))
		}
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].StartedAt.After(attempts[j].StartedAt)
	})
	return attempts
}

// machinesAgree reports whether two machine IDs can belong to the same
// operation. Start events may predate the agent learning its own ID,
// so an empty side is a wildcard.
func machinesAgree(a, b string) bool {
	return a == "" || b == "" || a == b
}

func pairedAttempt(start, completion models.AgentEvent) Attempt {
	completedAt := completion.Timestamp
	return Attempt{
		ID:          start.ID,
		TargetID:    firstNonEmpty(completion.MachineID, start.MachineID),
		StartedAt:   start.Timestamp,
		CompletedAt: &completedAt,
		Success:     completion.Success,
		Error:       completion.Error,
		Actor:       firstNonEmpty(start.Actor, completion.Actor),
		Metadata:    mergeMetadata(parseMetadata(completion.Data), parseMetadata(start.Data)),
	}
}

func openAttempt(start models.AgentEvent) Attempt {
	return Attempt{
		ID:        start.ID,
		TargetID:  start.MachineID,
		StartedAt: start.Timestamp,
		Actor:     start.Actor,
		Metadata:  parseMetadata(start.Data),
	}
}

// standaloneAttempt wraps a completion whose start was never observed:
// it reads as an attempt that started and finished in the same instant.
func standaloneAttempt(completion models.AgentEvent) Attempt {
	completedAt := completion.Timestamp
	return Attempt{
		ID:          completion.ID,
		TargetID:    completion.MachineID,
		StartedAt:   completion.Timestamp,
		CompletedAt: &completedAt,
		Success:     completion.Success,
		Error:       completion.Error,
		Actor:       completion.Actor,
		Metadata:    parseMetadata(completion.Data),
	}
}

// parseMetadata decodes an event's opaque data payload, yielding the
// zero value for anything unusable.
func parseMetadata(data string) AttemptMetadata {
	var m AttemptMetadata
	if data == "" {
		return m
	}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return AttemptMetadata{}
	}
	return m
}

// mergeMetadata fills gaps in the preferred metadata from the fallback,
// field by field.
func mergeMetadata(preferred, fallback AttemptMetadata) AttemptMetadata {
	return AttemptMetadata{
		Source:  firstNonEmpty(preferred.Source, fallback.Source),
		Channel: firstNonEmpty(preferred.Channel, fallback.Channel),
		Version: firstNonEmpty(preferred.Version, fallback.Version),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
