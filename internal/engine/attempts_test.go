package engine

import (
	"testing"

	"github.com/dockwatch-io/dockwatch/internal/models"
)

func startEv(id string, sec int, machine string) models.AgentEvent {
	return models.AgentEvent{ID: id, Name: models.EventOperationStart, Timestamp: at(sec), MachineID: machine}
}

func completedEv(id string, sec int, machine string, success bool) models.AgentEvent {
	return models.AgentEvent{ID: id, Name: models.EventOperationCompleted, Timestamp: at(sec), MachineID: machine, Success: &success}
}

func TestCorrelateAttemptsPairsAndStandalones(t *testing.T) {
	events := []models.AgentEvent{
		startEv("s1", 1, "machine-a"),
		completedEv("c1", 2, "machine-a", true),
		// No start in the window: must surface as a standalone attempt.
		completedEv("c2", 5, "machine-b", false),
	}

	attempts := CorrelateAttempts(events, nil)
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}

	// Most recent first.
	standalone := attempts[0]
	if standalone.TargetID != "machine-b" {
		t.Fatalf("first attempt target = %q, want machine-b", standalone.TargetID)
	}
	if !standalone.StartedAt.Equal(at(5)) {
		t.Errorf("standalone StartedAt = %v, want %v", standalone.StartedAt, at(5))
	}
	if standalone.CompletedAt == nil || !standalone.CompletedAt.Equal(at(5)) {
		t.Errorf("standalone CompletedAt = %v, want %v", standalone.CompletedAt, at(5))
	}
	if standalone.Success == nil || *standalone.Success {
		t.Error("standalone Success = true/nil, want false")
	}

	paired := attempts[1]
	if paired.TargetID != "machine-a" {
		t.Fatalf("second attempt target = %q, want machine-a", paired.TargetID)
	}
	if !paired.StartedAt.Equal(at(1)) {
		t.Errorf("paired StartedAt = %v, want %v", paired.StartedAt, at(1))
	}
	if paired.CompletedAt == nil || !paired.CompletedAt.Equal(at(2)) {
		t.Errorf("paired CompletedAt = %v, want %v", paired.CompletedAt, at(2))
	}
	if paired.Success == nil || !*paired.Success {
		t.Error("paired Success = false/nil, want true")
	}
}

func TestGreedyMatcherEarlierStartClaimsFirst(t *testing.T) {
	starts := []models.AgentEvent{
		// Given out of order: matching must sort by timestamp first.
		startEv("s2", 3, "machine-a"),
		startEv("s1", 1, "machine-a"),
	}
	completions := []models.AgentEvent{
		completedEv("c1", 4, "machine-a", true),
		completedEv("c2", 6, "machine-a", false),
	}

	attempts := GreedyMatcher{}.Match(starts, completions)
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}

	// Descending by StartedAt: s2 first, then s1. The earlier start s1
	// claimed c1 even though c1 sits closer to s2 in time.
	if attempts[1].ID != "s1" || attempts[1].CompletedAt == nil || !attempts[1].CompletedAt.Equal(at(4)) {
		t.Errorf("s1 paired with %v, want the first eligible completion at %v", attempts[1].CompletedAt, at(4))
	}
	if attempts[0].ID != "s2" || attempts[0].CompletedAt == nil || !attempts[0].CompletedAt.Equal(at(6)) {
		t.Errorf("s2 paired with %v, want %v", attempts[0].CompletedAt, at(6))
	}
}

func TestGreedyMatcherMachineWildcard(t *testing.T) {
	// The start predates the agent knowing its machine ID.
	starts := []models.AgentEvent{startEv("s1", 1, "")}
	completions := []models.AgentEvent{completedEv("c1", 2, "machine-a", true)}

	attempts := GreedyMatcher{}.Match(starts, completions)
	if len(attempts) != 1 {
		t.Fatalf("got %d attempts, want 1 pair", len(attempts))
	}
	if attempts[0].CompletedAt == nil {
		t.Fatal("wildcard start was not paired")
	}
	if attempts[0].TargetID != "machine-a" {
		t.Errorf("TargetID = %q, want the completion's machine ID", attempts[0].TargetID)
	}
}

func TestGreedyMatcherCompletionCannotPredateStart(t *testing.T) {
	starts := []models.AgentEvent{startEv("s1", 5, "machine-a")}
	completions := []models.AgentEvent{completedEv("c1", 3, "machine-a", true)}

	attempts := GreedyMatcher{}.Match(starts, completions)
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want an open start and a standalone completion", len(attempts))
	}
	if attempts[0].ID != "s1" || attempts[0].CompletedAt != nil {
		t.Errorf("start attempt = %+v, want open (no completion)", attempts[0])
	}
	if attempts[1].ID != "c1" || attempts[1].CompletedAt == nil {
		t.Errorf("completion attempt = %+v, want standalone", attempts[1])
	}
}

func TestGreedyMatcherOpenAttempt(t *testing.T) {
	starts := []models.AgentEvent{startEv("s1", 1, "machine-a")}

	attempts := GreedyMatcher{}.Match(starts, nil)
	if len(attempts) != 1 {
		t.Fatalf("got %d attempts, want 1", len(attempts))
	}
	got := attempts[0]
	if got.CompletedAt != nil || got.Success != nil {
		t.Errorf("open attempt = %+v, want no completion and no verdict", got)
	}
}

func TestAttemptMetadataPrefersCompletion(t *testing.T) {
	start := startEv("s1", 1, "machine-a")
	start.Data = `{"source":"github","channel":"stable","version":"1.2.0"}`
	start.Actor = "operator"

	completion := completedEv("c1", 2, "machine-a", true)
	completion.Data = `{"version":"1.2.1"}`

	attempts := GreedyMatcher{}.Match(
		[]models.AgentEvent{start},
		[]models.AgentEvent{completion},
	)
	if len(attempts) != 1 {
		t.Fatalf("got %d attempts, want 1", len(attempts))
	}
	meta := attempts[0].Metadata
	if meta.Version != "1.2.1" {
		t.Errorf("Version = %q, want the completion's %q", meta.Version, "1.2.1")
	}
	if meta.Source != "github" || meta.Channel != "stable" {
		t.Errorf("Metadata = %+v, want source/channel filled from the start", meta)
	}
	if attempts[0].Actor != "operator" {
		t.Errorf("Actor = %q, want %q", attempts[0].Actor, "operator")
	}
}

func TestAttemptMetadataToleratesGarbage(t *testing.T) {
	start := startEv("s1", 1, "machine-a")
	start.Data = `not json at all`

	attempts := GreedyMatcher{}.Match([]models.AgentEvent{start}, nil)
	if len(attempts) != 1 {
		t.Fatalf("got %d attempts, want 1", len(attempts))
	}
	if attempts[0].Metadata != (AttemptMetadata{}) {
		t.Errorf("Metadata = %+v, want zero value", attempts[0].Metadata)
	}
}

func TestCorrelateAttemptsIgnoresOtherEvents(t *testing.T) {
	events := []models.AgentEvent{
		{ID: "x1", Name: "agent.heartbeat", Timestamp: at(1), MachineID: "machine-a"},
		startEv("s1", 2, "machine-a"),
		{ID: "x2", Name: "agent.enrolled", Timestamp: at(3), MachineID: "machine-a"},
		completedEv("c1", 4, "machine-a", true),
	}

	attempts := CorrelateAttempts(events, nil)
	if len(attempts) != 1 {
		t.Fatalf("got %d attempts, want 1", len(attempts))
	}
	if attempts[0].ID != "s1" {
		t.Errorf("attempt ID = %q, want s1", attempts[0].ID)
	}
}
