package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/dockwatch-io/dockwatch/internal/models"
)

var t0 = time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC)

// at returns a timestamp n seconds after the test epoch.
func at(n int) time.Time { return t0.Add(time.Duration(n) * time.Second) }

func targeted(id string) string { return fmt.Sprintf(`{"containerId":%q}`, id) }

func TestNewIndexDeduplicatesAcrossPolls(t *testing.T) {
	records := []models.CommandRecord{
		{ID: "c1", Type: models.CommandContainerStart, Status: models.CommandQueued, CreatedAt: at(1)},
		{ID: "c2", Type: models.CommandContainerList, Status: models.CommandSuccess, CreatedAt: at(2), OutputLog: "[]"},
		// Same command observed again by a later overlapping poll,
		// now terminal.
		{ID: "c1", Type: models.CommandContainerStart, Status: models.CommandSuccess, CreatedAt: at(1), OutputLog: "{}"},
	}

	ix := NewIndex(records)
	if ix.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ix.Len())
	}
	got, ok := ix.LatestSuccessful(models.CommandContainerStart, nil)
	if !ok {
		t.Fatal("LatestSuccessful() found nothing, want the deduplicated record")
	}
	if got.Status != models.CommandSuccess {
		t.Errorf("status = %q, want %q", got.Status, models.CommandSuccess)
	}
}

func TestNewIndexKeepsAdvancedStatusRegardlessOfOrder(t *testing.T) {
	// The terminal observation arrives first; the stale pending copy
	// from an older poll must not regress it.
	records := []models.CommandRecord{
		{ID: "c1", Type: models.CommandContainerStop, Status: models.CommandFailed, CreatedAt: at(1), Error: "no such container"},
		{ID: "c1", Type: models.CommandContainerStop, Status: models.CommandSent, CreatedAt: at(1)},
	}

	ix := NewIndex(records)
	latest := ix.LatestByTarget(models.CommandContainerStop)
	got, ok := latest[""]
	if !ok {
		t.Fatal("LatestByTarget() missing the untargeted record")
	}
	if got.Status != models.CommandFailed {
		t.Errorf("status = %q, want %q", got.Status, models.CommandFailed)
	}
}

func TestLatestSuccessful(t *testing.T) {
	records := []models.CommandRecord{
		{ID: "s1", Type: models.CommandContainerStats, Status: models.CommandSuccess, CreatedAt: at(1), OutputLog: "[]"},
		{ID: "s2", Type: models.CommandContainerStats, Status: models.CommandSuccess, CreatedAt: at(2), OutputLog: "[]"},
		{ID: "s3", Type: models.CommandContainerStats, Status: models.CommandSuccess, CreatedAt: at(3), OutputLog: "[]"},
		// Later but failed: never a candidate.
		{ID: "s4", Type: models.CommandContainerStats, Status: models.CommandFailed, CreatedAt: at(4)},
		// Later but a different type.
		{ID: "s5", Type: models.CommandContainerList, Status: models.CommandSuccess, CreatedAt: at(5), OutputLog: "[]"},
	}

	ix := NewIndex(records)
	got, ok := ix.LatestSuccessful(models.CommandContainerStats, nil)
	if !ok {
		t.Fatal("LatestSuccessful() found nothing")
	}
	if got.ID != "s3" {
		t.Errorf("LatestSuccessful() = %s, want s3", got.ID)
	}
}

func TestLatestSuccessfulTieKeepsInputOrder(t *testing.T) {
	records := []models.CommandRecord{
		{ID: "first", Type: models.CommandContainerList, Status: models.CommandSuccess, CreatedAt: at(1), OutputLog: "[]"},
		{ID: "second", Type: models.CommandContainerList, Status: models.CommandSuccess, CreatedAt: at(1), OutputLog: "[]"},
	}

	ix := NewIndex(records)
	got, ok := ix.LatestSuccessful(models.CommandContainerList, nil)
	if !ok {
		t.Fatal("LatestSuccessful() found nothing")
	}
	if got.ID != "first" {
		t.Errorf("LatestSuccessful() = %s, want first (stable tie-break)", got.ID)
	}
}

func TestLatestSuccessfulWithPredicate(t *testing.T) {
	records := []models.CommandRecord{
		{ID: "e1", Type: models.CommandContainerExec, Status: models.CommandSuccess, CreatedAt: at(1), Payload: targeted("aaa"), OutputLog: "{}"},
		{ID: "e2", Type: models.CommandContainerExec, Status: models.CommandSuccess, CreatedAt: at(2), Payload: targeted("bbb"), OutputLog: "{}"},
		// Malformed payload: reaches the predicate as untargeted.
		{ID: "e3", Type: models.CommandContainerExec, Status: models.CommandSuccess, CreatedAt: at(3), Payload: "{broken", OutputLog: "{}"},
	}

	ix := NewIndex(records)
	got, ok := ix.LatestSuccessful(models.CommandContainerExec, func(target string) bool {
		return target == "aaa"
	})
	if !ok {
		t.Fatal("LatestSuccessful() found nothing for target aaa")
	}
	if got.ID != "e1" {
		t.Errorf("LatestSuccessful() = %s, want e1", got.ID)
	}

	_, ok = ix.LatestSuccessful(models.CommandContainerExec, func(target string) bool {
		return target == "zzz"
	})
	if ok {
		t.Error("LatestSuccessful() matched a record for an unknown target")
	}

	got, ok = ix.LatestSuccessful(models.CommandContainerExec, func(target string) bool {
		return target == ""
	})
	if !ok || got.ID != "e3" {
		t.Errorf("LatestSuccessful() for untargeted = %v (ok=%v), want e3", got.ID, ok)
	}
}

func TestLatestByTarget(t *testing.T) {
	records := []models.CommandRecord{
		{ID: "a1", Type: models.CommandContainerStart, Status: models.CommandSuccess, CreatedAt: at(1), Payload: targeted("aaa")},
		{ID: "a2", Type: models.CommandContainerStop, Status: models.CommandQueued, CreatedAt: at(3), Payload: targeted("aaa")},
		{ID: "b1", Type: models.CommandContainerRestart, Status: models.CommandFailed, CreatedAt: at(2), Payload: targeted("bbb")},
		// Unrelated type never enters the map.
		{ID: "x1", Type: models.CommandContainerLogs, Status: models.CommandSuccess, CreatedAt: at(9), Payload: targeted("aaa"), OutputLog: "{}"},
	}

	ix := NewIndex(records)
	latest := ix.LatestByTarget(models.ContainerActionTypes...)

	if len(latest) != 2 {
		t.Fatalf("LatestByTarget() has %d targets, want 2", len(latest))
	}
	if got := latest["aaa"]; got.ID != "a2" {
		t.Errorf("latest for aaa = %s, want a2", got.ID)
	}
	if got := latest["bbb"]; got.ID != "b1" {
		t.Errorf("latest for bbb = %s, want b1", got.ID)
	}
}

func TestByID(t *testing.T) {
	records := []models.CommandRecord{
		{ID: "c1", Type: models.CommandContainerStart, Status: models.CommandQueued, CreatedAt: at(1)},
		// The same command seen terminal by a later poll: the lookup
		// must surface the advanced copy.
		{ID: "c1", Type: models.CommandContainerStart, Status: models.CommandSuccess, CreatedAt: at(1), OutputLog: "{}"},
		{ID: "c2", Type: models.CommandContainerExec, Status: models.CommandInProgress, CreatedAt: at(2)},
	}

	ix := NewIndex(records)
	got, ok := ix.ByID("c1")
	if !ok {
		t.Fatal("ByID(c1) found nothing")
	}
	if got.Status != models.CommandSuccess {
		t.Errorf("status = %q, want %q", got.Status, models.CommandSuccess)
	}

	if _, ok := ix.ByID("ghost"); ok {
		t.Error("ByID(ghost) matched, want no record")
	}
}

func TestSuccessesAscendingWithOutput(t *testing.T) {
	records := []models.CommandRecord{
		{ID: "s3", Type: models.CommandContainerStats, Status: models.CommandSuccess, CreatedAt: at(3), OutputLog: "[]"},
		{ID: "s1", Type: models.CommandContainerStats, Status: models.CommandSuccess, CreatedAt: at(1), OutputLog: "[]"},
		// Success without output yet: excluded.
		{ID: "s2", Type: models.CommandContainerStats, Status: models.CommandSuccess, CreatedAt: at(2)},
		{ID: "p1", Type: models.CommandContainerStats, Status: models.CommandInProgress, CreatedAt: at(4)},
	}

	ix := NewIndex(records)
	got := ix.Successes(models.CommandContainerStats)

	if len(got) != 2 {
		t.Fatalf("Successes() returned %d records, want 2", len(got))
	}
	if got[0].ID != "s1" || got[1].ID != "s3" {
		t.Errorf("Successes() order = %s, %s; want s1, s3", got[0].ID, got[1].ID)
	}
}
